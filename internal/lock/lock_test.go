package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesCurrentPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentty.lock")

	h, err := Acquire(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer h.Release()

	got := readPid(path)
	if got != os.Getpid() {
		t.Errorf("lock file pid = %d, want %d", got, os.Getpid())
	}
}

func TestAcquireSecondTimeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentty.lock")

	h, err := Acquire(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer h.Release()

	_, err = Acquire(path)
	if err == nil {
		t.Fatal("expected error acquiring an already-held lock")
	}
	if _, ok := err.(ErrAlreadyRunning); !ok {
		t.Errorf("expected ErrAlreadyRunning, got %T: %v", err, err)
	}
}

func TestAcquireAfterReleaseSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentty.lock")

	h, err := Acquire(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	h2, err := Acquire(path)
	if err != nil {
		t.Fatalf("expected re-acquire to succeed, got: %v", err)
	}
	h2.Release()
}
