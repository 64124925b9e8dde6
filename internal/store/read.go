package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/brutus/internal/driver"
	"github.com/roach88/brutus/internal/ir"
)

const selectColumns = `
	SELECT request_id, seq, method, signature, spec_hash, body_hash,
	       outcome, code, message, blocks, ops, output, elapsed_ns
	FROM compilations`

// History returns journal records ordered by seq ASC, request_id ASC
// COLLATE BINARY. An empty spec key returns every record; otherwise only
// records of that specialization. A positive limit keeps the most recent
// records.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) History(ctx context.Context, key ir.SpecKey, limit int) ([]driver.Record, error) {
	query := selectColumns
	var args []any
	if key != "" {
		query += ` WHERE spec_key = ?`
		args = append(args, string(key))
	}
	if limit > 0 {
		// Take the newest rows, then restore ascending order.
		query = `SELECT * FROM (` + query + ` ORDER BY seq DESC, request_id COLLATE BINARY DESC LIMIT ?)`
		args = append(args, limit)
	}
	query += ` ORDER BY seq ASC, request_id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	records := []driver.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record of a specialization.
// Returns (record, true, nil) if found, or (zero, false, nil) if not.
func (s *Store) Latest(ctx context.Context, key ir.SpecKey) (driver.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		WHERE spec_key = ?
		ORDER BY seq DESC, request_id COLLATE BINARY DESC
		LIMIT 1
	`, string(key))
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return driver.Record{}, false, nil
	}
	if err != nil {
		return driver.Record{}, false, err
	}
	return rec, true, nil
}

// LastSeq returns the highest seq in the journal, or 0 if it is empty.
// A driver resuming a journal starts its clock here (driver.NewClockAt).
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM compilations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (driver.Record, error) {
	var (
		rec       driver.Record
		method    string
		signature string
		elapsed   int64
	)
	err := sc.Scan(
		&rec.RequestID,
		&rec.Seq,
		&method,
		&signature,
		&rec.SpecHash,
		&rec.BodyHash,
		&rec.Outcome,
		&rec.Code,
		&rec.Message,
		&rec.Blocks,
		&rec.Ops,
		&rec.Output,
		&elapsed,
	)
	if err == sql.ErrNoRows {
		return driver.Record{}, err
	}
	if err != nil {
		return driver.Record{}, fmt.Errorf("scan compilation: %w", err)
	}

	sig, err := unmarshalSignature(signature)
	if err != nil {
		return driver.Record{}, fmt.Errorf("compilation %s: %w", rec.RequestID, err)
	}
	rec.Spec = ir.NewSpecialization(ir.ParseGlobal(method), sig...)
	rec.Elapsed = time.Duration(elapsed)
	return rec, nil
}
