package fetch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "setup error",
			err:  &SetupError{Resource: "latest.csv", Reason: "cannot load metadata table"},
			want: "setup error for latest.csv: cannot load metadata table",
		},
		{
			name: "permanent error with status",
			err:  &PermanentError{Operation: "fetch_artifact", StatusCode: 404, Reason: "not found"},
			want: "permanent failure during fetch_artifact (HTTP 404): not found",
		},
		{
			name: "permanent error without status",
			err:  &PermanentError{Operation: "fetch_artifact", Reason: "missing sha256 value"},
			want: "permanent failure during fetch_artifact: missing sha256 value",
		},
		{
			name: "retryable error with status",
			err:  &RetryableError{Operation: "fetch_artifact", StatusCode: 503, Reason: "service unavailable"},
			want: "retryable failure during fetch_artifact (HTTP 503): service unavailable",
		},
		{
			name: "local io error",
			err:  &LocalIOError{Path: "/tmp/x.apk", Err: errors.New("no space left on device")},
			want: "local io error writing /tmp/x.apk: no space left on device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	wrapped := fmt.Errorf("fetching: %w", &RetryableError{Operation: "fetch_artifact", Reason: "transport", Err: cause})

	var retryErr *RetryableError

	require.True(t, errors.As(wrapped, &retryErr))
	require.ErrorIs(t, wrapped, cause)
}
