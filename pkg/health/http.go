package health

import (
	"context"
	"net/http"
	"time"
)

// HTTPChecker requests a URL and accepts any status inside
// [MinStatus, MaxStatus]. Redirects are reported as-is, since management
// endpoints usually redirect their base URL to a login page.
type HTTPChecker struct {
	URL       string
	MinStatus int
	MaxStatus int

	client *http.Client
}

// NewHTTPChecker creates a checker accepting 2xx and 3xx answers
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:       url,
		MinStatus: http.StatusOK,
		MaxStatus: 399,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return resultSince(start, false, "bad request for %s: %v", h.URL, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return resultSince(start, false, "GET %s: %v", h.URL, err)
	}
	resp.Body.Close()

	if resp.StatusCode < h.MinStatus || resp.StatusCode > h.MaxStatus {
		return resultSince(start, false, "GET %s answered %s, want %d-%d", h.URL, resp.Status, h.MinStatus, h.MaxStatus)
	}
	return resultSince(start, true, "GET %s answered %s", h.URL, resp.Status)
}

func (h *HTTPChecker) Type() CheckType { return CheckTypeHTTP }

// WithStatusRange sets the accepted status range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.MinStatus, h.MaxStatus = min, max
	return h
}

// WithTimeout bounds a single request
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.client.Timeout = timeout
	return h
}
