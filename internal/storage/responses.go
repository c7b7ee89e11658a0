// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"time"
)

// ResponseRecord is one persisted prompt/answer pair of the response cache.
type ResponseRecord struct {
	Prompt    string
	Answer    string
	CreatedAt time.Time
	Hits      int
}

// LoadResponses returns up to limit records, newest first.
func (d *DB) LoadResponses(limit int) ([]ResponseRecord, error) {
	if d == nil || d.db == nil {
		return nil, ErrClosed
	}
	ctx, cancel := d.ctx()
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT prompt, answer, created_at, hits FROM responses ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: load responses: %w", err)
	}
	defer rows.Close()

	var out []ResponseRecord
	for rows.Next() {
		var rec ResponseRecord
		var created int64
		if err := rows.Scan(&rec.Prompt, &rec.Answer, &created, &rec.Hits); err != nil {
			return nil, fmt.Errorf("storage: scan response: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveResponse upserts a record.
func (d *DB) SaveResponse(rec ResponseRecord) error {
	if d == nil || d.db == nil {
		return ErrClosed
	}
	ctx, cancel := d.ctx()
	defer cancel()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = d.now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO responses (prompt, answer, created_at, hits) VALUES (?, ?, ?, ?)
		 ON CONFLICT(prompt) DO UPDATE SET answer = excluded.answer, hits = excluded.hits`,
		rec.Prompt, rec.Answer, rec.CreatedAt.UnixMilli(), rec.Hits)
	if err != nil {
		return fmt.Errorf("storage: save response: %w", err)
	}
	return nil
}

// ClearResponses deletes every cached response.
func (d *DB) ClearResponses() error {
	if d == nil || d.db == nil {
		return ErrClosed
	}
	ctx, cancel := d.ctx()
	defer cancel()

	if _, err := d.db.ExecContext(ctx, `DELETE FROM responses`); err != nil {
		return fmt.Errorf("storage: clear responses: %w", err)
	}
	return nil
}
