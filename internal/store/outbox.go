package store

import (
	"context"
	"fmt"
	"time"
)

// StoredPublication is one publication waiting in the outbox for redelivery.
type StoredPublication struct {
	ID        int64
	Interface string
	Path      string
	Payload   []byte
	QueuedAt  time.Time
}

// EnqueuePublication appends a publication to the outbox.
func (s *Store) EnqueuePublication(ctx context.Context, iface, path string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (interface, path, payload, queued_at) VALUES (?, ?, ?, ?)`,
		iface, path, payload, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("enqueuing publication: %w", err)
	}
	return nil
}

// Publications returns all queued publications in insertion order.
func (s *Store) Publications(ctx context.Context) ([]StoredPublication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, interface, path, payload, queued_at FROM outbox ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var pubs []StoredPublication
	for rows.Next() {
		var p StoredPublication
		var queuedAt string

		if err := rows.Scan(&p.ID, &p.Interface, &p.Path, &p.Payload, &queuedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}

		t, err := time.Parse(time.RFC3339, queuedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing outbox timestamp %q: %w", queuedAt, err)
		}
		p.QueuedAt = t

		pubs = append(pubs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outbox: %w", err)
	}

	return pubs, nil
}

// DeletePublication removes a delivered publication from the outbox.
func (s *Store) DeletePublication(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting publication %d: %w", id, err)
	}
	return nil
}
