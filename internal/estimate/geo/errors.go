package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"zholkomekBack/internal/estimate/ratelimit"
)

// wrapTransport classifies a transport-level failure. Network hiccups are
// retryable; a cancelled context is not.
func wrapTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return ratelimit.Transient(fmt.Errorf("%s: do request: %w", op, err))
}

// statusError converts a non-2xx response into an error, marking 429 and
// 5xx as transient so the rate-limited client may retry them.
func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	err := fmt.Errorf("%s: http %s: %s", op, resp.Status, strings.TrimSpace(string(b)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return ratelimit.Transient(err)
	}
	return err
}
