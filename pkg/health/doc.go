/*
Package health checks that a management endpoint is reachable before a
deployment starts.

A run that cannot reach its endpoint would otherwise fail deep inside
inventory collection with a transport error. Preflight dials the endpoint
host first and then requests the base URL, retrying each check a few
times:

	err := health.Preflight(ctx, "https://mgmt.example.com", health.Config{
		Interval: time.Second,
		Timeout:  10 * time.Second,
		Retries:  3,
	})

Checkers are usable on their own. An HTTPChecker accepts a status range;
a TCPChecker only needs the connection to open. Probe retries any Checker
until it succeeds once or fails Retries times in a row.
*/
package health
