// Package lock provides the single-instance advisory lock that keeps two
// Agentty daemons from opening the same database concurrently.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by Acquire when another process already
// holds the lock. Pid is the process id recorded by that process, taken
// from the lock file's contents rather than the OS lock table, so it
// survives even on platforms where flock doesn't expose the holder's pid.
type ErrAlreadyRunning struct {
	Pid int
}

func (e ErrAlreadyRunning) Error() string {
	if e.Pid > 0 {
		return fmt.Sprintf("agentty is already running (pid %d)", e.Pid)
	}
	return "agentty is already running"
}

// Handle releases the lock when closed.
type Handle struct {
	fl *flock.Flock
	f  *os.File
}

// Acquire takes an exclusive, non-blocking advisory lock at path. On
// success the current process id is written into the lock file,
// truncating whatever was there before. On failure to acquire, the pid
// recorded by the current holder is read back out and returned as part
// of ErrAlreadyRunning.
func Acquire(path string) (*Handle, error) {
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning{Pid: readPid(path)}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing lock file %s: %w", path, err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		f.Close()
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing pid to lock file %s: %w", path, err)
	}

	return &Handle{fl: fl, f: f}, nil
}

// Release unlocks and closes the lock file. Safe to call once.
func (h *Handle) Release() error {
	if err := h.f.Close(); err != nil {
		_ = h.fl.Unlock()
		return fmt.Errorf("closing lock file: %w", err)
	}
	if err := h.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

func readPid(path string) int {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0
	}
	return pid
}
