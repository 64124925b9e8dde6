package testutil

import (
	"testing"

	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/interop"
)

// Session returns a fresh standard host image and an initialized session
// bound to it.
func Session(t testing.TB) (*host.Image, *interop.Session) {
	t.Helper()
	im := host.NewStandardImage()
	s, err := interop.NewRuntime(im).Initialize()
	if err != nil {
		t.Fatalf("initialize runtime: %v", err)
	}
	return im, s
}
