//go:build !(linux || darwin)

package transport

import "testing"

func newLoopbackPair(t *testing.T) (a, b *Pipe) {
	t.Helper()
	a, b, err := NewLoopbackPair()
	if err != nil {
		t.Fatalf("NewLoopbackPair: %v", err)
	}
	return a, b
}
