package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/brutus/internal/driver"
	"github.com/roach88/brutus/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a ready record with minimal fields.
func createTestRecord(id, method string, seq int64, sig ...ir.Type) driver.Record {
	spec := ir.NewSpecialization(ir.ParseGlobal(method), sig...)
	return driver.Record{
		Seq:       seq,
		RequestID: id,
		Spec:      spec,
		SpecHash:  ir.MustSpecHash(spec),
		BodyHash:  "test-body",
		Outcome:   "ready",
		Blocks:    1,
		Ops:       2,
		Output:    "func @\"" + string(spec.Key()) + "\" {}",
		Elapsed:   3 * time.Millisecond,
	}
}
