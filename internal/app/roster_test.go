package app

import (
	"errors"
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

func TestRosterJoinAndRejoin(t *testing.T) {
	r := newRoster()
	now := time.Now()

	p, err := r.join("Alice", "1234", now)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if p.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %s", p.Status)
	}

	if _, err := r.join("Alice", "0000", now); !errors.Is(err, domain.ErrWrongPin) {
		t.Fatalf("expected wrong pin, got %v", err)
	}

	r.setStatus("Alice", domain.StatusOffline, now)
	rejoined, err := r.join("Alice", "1234", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if rejoined.Status != domain.StatusActive {
		t.Fatalf("rejoin must reactivate, got %s", rejoined.Status)
	}
}

func TestRosterLockClearsOnUnlockAll(t *testing.T) {
	r := newRoster()
	now := time.Now()
	r.join("Alice", "1", now)
	r.join("Bob", "2", now)

	if !r.lock("Alice", now) {
		t.Fatalf("lock failed")
	}
	if !r.isLocked("Alice") || r.isLocked("Bob") {
		t.Fatalf("expected only Alice locked")
	}

	r.unlockAll(now.Add(time.Second))
	if r.isLocked("Alice") {
		t.Fatalf("expected lock cleared on next question")
	}
}

func TestRosterSnapshotSorted(t *testing.T) {
	r := newRoster()
	now := time.Now()
	r.join("Zed", "1", now)
	r.join("Alice", "2", now)
	r.join("Mia", "3", now)

	infos := r.snapshot()
	if len(infos) != 3 {
		t.Fatalf("expected 3 players, got %d", len(infos))
	}
	if infos[0].Name != "Alice" || infos[1].Name != "Mia" || infos[2].Name != "Zed" {
		t.Fatalf("expected sorted roster, got %+v", infos)
	}

	if !r.delete("Mia") {
		t.Fatalf("delete failed")
	}
	if r.delete("Mia") {
		t.Fatalf("second delete must report missing")
	}
	if names := r.names(); len(names) != 2 {
		t.Fatalf("expected 2 names after delete, got %v", names)
	}
}
