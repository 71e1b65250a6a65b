// Package androzoo talks to the AndroZoo download API: one GET per artifact,
// identified by its sha256, authenticated with an API key query parameter.
package androzoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ymzhao/logleaks/internal/fetch"
	"github.com/ymzhao/logleaks/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const opFetchArtifact = "fetch_artifact"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// FetchArtifact requests one artifact and returns the streamed body plus the
// declared content length (-1 when unknown). Non-2xx statuses map onto the
// permanent/retryable taxonomy: retrying a 404 or an auth rejection cannot
// change the outcome, while transport errors and 5xx responses are transient.
func (c *Client) FetchArtifact(ctx context.Context, sha256 string) (io.ReadCloser, int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("sha256", sha256)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, &fetch.PermanentError{
			Operation: opFetchArtifact,
			Reason:    "invalid request",
			Err:       err,
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("transport error fetching artifact", "sha256", sha256, "err", err)

		return nil, 0, &fetch.RetryableError{
			Operation: opFetchArtifact,
			Reason:    err.Error(),
			Err:       err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, resp.ContentLength, nil
	}

	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, &fetch.PermanentError{
			Operation:  opFetchArtifact,
			StatusCode: resp.StatusCode,
			Reason:     "artifact not found in the AndroZoo database",
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, &fetch.PermanentError{
			Operation:  opFetchArtifact,
			StatusCode: resp.StatusCode,
			Reason:     "API key authentication failed",
		}
	default:
		return nil, 0, &fetch.RetryableError{
			Operation:  opFetchArtifact,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("unexpected status %s", resp.Status),
		}
	}
}
