package store

import (
	"context"
	"fmt"

	"github.com/roach88/brutus/internal/driver"
)

// Record appends a finished compilation to the journal.
// Uses ON CONFLICT(request_id) DO NOTHING for idempotency - a record
// written twice is silently ignored.
func (s *Store) Record(ctx context.Context, rec driver.Record) error {
	sig, err := marshalSignature(rec.Spec.Signature)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(request_id, seq, spec_key, method, signature, spec_hash, body_hash,
		 outcome, code, message, blocks, ops, output, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`,
		rec.RequestID,
		rec.Seq,
		string(rec.Spec.Key()),
		rec.Spec.Method.String(),
		sig,
		rec.SpecHash,
		rec.BodyHash,
		rec.Outcome,
		rec.Code,
		rec.Message,
		rec.Blocks,
		rec.Ops,
		rec.Output,
		rec.Elapsed.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}
	return nil
}

var _ driver.Journal = (*Store)(nil)
