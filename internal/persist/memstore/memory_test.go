package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/yiblet/cliphist/internal/persist"
)

// TestMemoryStore_Empty tests that an unsaved store reports ErrNotFound.
func TestMemoryStore_Empty(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Load(context.Background())
	if !errors.Is(err, persist.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

// TestMemoryStore_SaveLoad tests that saved bytes are returned as copies.
func TestMemoryStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte(`{"version":2}`)
	if err := s.Save(ctx, data); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data[0] = 'X'

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(got) != `{"version":2}` {
		t.Errorf("Load() = %q, want %q", got, `{"version":2}`)
	}

	got[0] = 'Y'
	again, _ := s.Load(ctx)
	if again[0] != '{' {
		t.Error("Load() returned shared buffer")
	}

	if s.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", s.Saves())
	}
}

// TestMemoryStore_Errors tests the failure hooks.
func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	s.SetErrors(boom, boom)
	if err := s.Save(ctx, []byte("x")); !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want %v", err, boom)
	}
	if _, err := s.Load(ctx); !errors.Is(err, boom) {
		t.Errorf("Load() error = %v, want %v", err, boom)
	}

	s.SetErrors(nil, nil)
	if err := s.Save(ctx, []byte("x")); err != nil {
		t.Errorf("Save() error after reset: %v", err)
	}
}
