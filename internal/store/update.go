package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PendingUpdate records an update that was installed into the inactive slot
// but not yet confirmed. It is written immediately before the reboot request
// and resolved on the next boot by comparing Slot with the booted slot.
type PendingUpdate struct {
	// UUID is the platform-assigned request identifier, echoed in every
	// status report for this update.
	UUID string

	// URL is the bundle source, kept for diagnostics.
	URL string

	// Slot is the partition slot the bundle was installed into.
	Slot string

	// UpdatedAt is when the record was written.
	UpdatedAt time.Time
}

// SavePendingUpdate writes the pending update record, replacing any previous
// one. Only a single in-flight update is supported.
func (s *Store) SavePendingUpdate(ctx context.Context, p PendingUpdate) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_update (id, uuid, url, slot, updated_at)
		 VALUES (1, ?, ?, ?, ?)`,
		p.UUID, p.URL, p.Slot, p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving pending update: %w", err)
	}

	return nil
}

// LoadPendingUpdate returns the pending update record, or nil when no update
// is awaiting confirmation.
func (s *Store) LoadPendingUpdate(ctx context.Context) (*PendingUpdate, error) {
	var p PendingUpdate
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, url, slot, updated_at FROM pending_update WHERE id = 1`,
	).Scan(&p.UUID, &p.URL, &p.Slot, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading pending update: %w", err)
	}

	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing pending update timestamp %q: %w", updatedAt, err)
	}
	p.UpdatedAt = t

	return &p, nil
}

// ClearPendingUpdate removes the pending update record. Clearing when no
// record exists is not an error.
func (s *Store) ClearPendingUpdate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_update WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing pending update: %w", err)
	}
	return nil
}
