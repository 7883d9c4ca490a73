package health

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/cuemby/burrow/pkg/log"
)

// EndpointCheckers returns the checks run before talking to a management
// endpoint: a TCP dial of its host, then an HTTP request to its base URL.
// Any HTTP answer below 500 counts as reachable since the base URL is
// rarely a real resource.
func EndpointCheckers(endpoint string) ([]Checker, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return nil, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
		}
	}

	return []Checker{
		NewTCPChecker(net.JoinHostPort(u.Hostname(), port)),
		NewHTTPChecker(endpoint).WithStatusRange(100, 499),
	}, nil
}

// Preflight verifies that endpoint is reachable
func Preflight(ctx context.Context, endpoint string, config Config) error {
	checkers, err := EndpointCheckers(endpoint)
	if err != nil {
		return err
	}

	logger := log.WithComponent("preflight")
	for _, checker := range checkers {
		result, err := Probe(ctx, checker, config)
		if err != nil {
			return err
		}
		if !result.Healthy {
			return fmt.Errorf("endpoint %s unreachable (%s check): %s", endpoint, checker.Type(), result.Message)
		}
		logger.Debug().
			Str("check", string(checker.Type())).
			Dur("duration", result.Duration).
			Msg(result.Message)
	}
	return nil
}
