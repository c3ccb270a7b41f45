package store

import (
	"context"
	"testing"
)

// TestOutboxFIFO verifies publications come back in insertion order.
func TestOutboxFIFO(t *testing.T) {
	s := openTestStore(t)
	defer s.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	entries := []struct {
		iface   string
		path    string
		payload string
	}{
		{"io.edgehog.devicemanager.OTAResponse", "/response", `{"v":{"status":"InProgress"}}`},
		{"io.edgehog.devicemanager.OTAResponse", "/response", `{"v":{"status":"Error"}}`},
		{"io.edgehog.devicemanager.SystemStatus", "/systemStatus", `{"v":{"taskCount":42}}`},
	}

	for _, e := range entries {
		if err := s.EnqueuePublication(ctx, e.iface, e.path, []byte(e.payload)); err != nil {
			t.Fatalf("EnqueuePublication() error = %v", err)
		}
	}

	pubs, err := s.Publications(ctx)
	if err != nil {
		t.Fatalf("Publications() error = %v", err)
	}
	if len(pubs) != len(entries) {
		t.Fatalf("len(Publications()) = %d, want %d", len(pubs), len(entries))
	}

	for i, p := range pubs {
		if p.Interface != entries[i].iface {
			t.Errorf("pubs[%d].Interface = %q, want %q", i, p.Interface, entries[i].iface)
		}
		if p.Path != entries[i].path {
			t.Errorf("pubs[%d].Path = %q, want %q", i, p.Path, entries[i].path)
		}
		if string(p.Payload) != entries[i].payload {
			t.Errorf("pubs[%d].Payload = %q, want %q", i, p.Payload, entries[i].payload)
		}
		if p.QueuedAt.IsZero() {
			t.Errorf("pubs[%d].QueuedAt should be populated", i)
		}
	}
}

// TestDeletePublication verifies delivered entries are removed individually.
func TestDeletePublication(t *testing.T) {
	s := openTestStore(t)
	defer s.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnqueuePublication(ctx, "io.edgehog.devicemanager.OTAResponse", "/response", []byte(`{}`)); err != nil {
			t.Fatalf("EnqueuePublication() error = %v", err)
		}
	}

	pubs, err := s.Publications(ctx)
	if err != nil {
		t.Fatalf("Publications() error = %v", err)
	}
	if len(pubs) != 3 {
		t.Fatalf("len(Publications()) = %d, want 3", len(pubs))
	}

	if err := s.DeletePublication(ctx, pubs[1].ID); err != nil {
		t.Fatalf("DeletePublication() error = %v", err)
	}

	remaining, err := s.Publications(ctx)
	if err != nil {
		t.Fatalf("Publications() error = %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("len(Publications()) = %d after delete, want 2", len(remaining))
	}
	if remaining[0].ID != pubs[0].ID || remaining[1].ID != pubs[2].ID {
		t.Error("remaining publications should keep their original order")
	}
}

// TestPublicationsEmpty verifies an empty outbox returns no entries.
func TestPublicationsEmpty(t *testing.T) {
	s := openTestStore(t)
	defer s.Close() //nolint:errcheck // Test cleanup

	pubs, err := s.Publications(context.Background())
	if err != nil {
		t.Fatalf("Publications() error = %v", err)
	}
	if len(pubs) != 0 {
		t.Errorf("len(Publications()) = %d, want 0", len(pubs))
	}
}
