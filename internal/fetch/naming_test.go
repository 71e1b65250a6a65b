package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ymzhao/logleaks/internal/dataset"
)

func TestTargetFilename(t *testing.T) {
	tests := []struct {
		name string
		item dataset.WorkItem
		want string
	}{
		{
			name: "hash truncated to prefix",
			item: dataset.WorkItem{
				Identifier: "com.example.app",
				SHA256:     "abcdef0123456789abcdef0123456789",
				ScanDate:   time.Date(2019, 11, 3, 14, 30, 0, 0, time.UTC),
			},
			want: "com.example.app_20191103_abcdef01.apk",
		},
		{
			name: "short hash kept whole",
			item: dataset.WorkItem{
				Identifier: "com.example.app",
				SHA256:     "abc",
				ScanDate:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			want: "com.example.app_20200101_abc.apk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TargetFilename(tt.item))
		})
	}
}
