package mptm

import (
	"testing"

	"github.com/cwbudde/minuitgrad/internal/transport"
)

// newLoopbackLink builds two transport.Pipe endpoints wired to each
// other in the test process, used to exercise the dispatcher and
// worker loop without a real fork.
func newLoopbackLink(t *testing.T) (a, b *transport.Pipe) {
	t.Helper()
	a, b, err := transport.NewLoopbackPair()
	if err != nil {
		t.Fatalf("NewLoopbackPair: %v", err)
	}
	return a, b
}
