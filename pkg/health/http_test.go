package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPChecker_Status(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		min     int
		max     int
		healthy bool
	}{
		{"ok", http.StatusOK, 200, 399, true},
		{"server error", http.StatusInternalServerError, 200, 399, false},
		{"created in custom range", http.StatusCreated, 200, 299, true},
		{"not found counts as reachable", http.StatusNotFound, 100, 499, true},
		{"unavailable", http.StatusServiceUnavailable, 100, 499, false},
		{"unauthorized counts as reachable", http.StatusUnauthorized, 100, 499, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			result := NewHTTPChecker(server.URL).WithStatusRange(tt.min, tt.max).Check(context.Background())
			assert.Equal(t, tt.healthy, result.Healthy, result.Message)
			assert.Positive(t, result.Duration)
		})
	}
}

func TestHTTPChecker_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/ui/login", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL + "/").Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Contains(t, result.Message, "302")
}

func TestHTTPChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestHTTPChecker_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewHTTPChecker(server.URL).Check(ctx)
	assert.False(t, result.Healthy)
}

func TestHTTPChecker_Type(t *testing.T) {
	assert.Equal(t, CheckTypeHTTP, NewHTTPChecker("http://example.com").Type())
}
