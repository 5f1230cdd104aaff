package testing

import (
	"context"
	"testing"
	"time"
)

// Eventually polls condition every 10ms until it returns true, failing the
// test when the timeout passes first. Useful for asserting on background
// goroutines like the outbox publisher and the reconciler.
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Context returns a context cancelled when the test finishes or the timeout
// passes, whichever comes first.
func Context(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
