package health

import (
	"context"
	"net"
	"time"
)

// TCPChecker dials host:port and hangs up once the connection is accepted
type TCPChecker struct {
	Address string
	Timeout time.Duration
}

func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{Address: address, Timeout: 5 * time.Second}
}

func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	conn, err := (&net.Dialer{Timeout: t.Timeout}).DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return resultSince(start, false, "dial %s: %v", t.Address, err)
	}
	conn.Close()
	return resultSince(start, true, "%s accepts connections", t.Address)
}

func (t *TCPChecker) Type() CheckType { return CheckTypeTCP }

func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
