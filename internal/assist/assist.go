// Package assist implements the bounded, self-correcting recovery loop
// the session manager runs after an agent turn fails: a handful of
// retries, each fed the previous failure's output, stopped early if the
// agent keeps failing the same way. No commit or rebase step uses it.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentty-run/agentty/internal/channel"
)

// Policy bounds one assisted recovery loop.
type Policy struct {
	// MaxAttempts is the hard ceiling on assist attempts before giving up.
	MaxAttempts int
	// MaxIdenticalFailureStreak is how many times in a row the same
	// failure fingerprint is tolerated before failing fast.
	MaxIdenticalFailureStreak int
}

// DefaultPolicy mirrors the defaults seeded into ~/.agentty/config.toml.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, MaxIdenticalFailureStreak: 2}
}

// Context carries everything one assist attempt needs to run the agent
// and surface its output.
type Context struct {
	Channel   channel.AgentChannel
	SessionID string
	Folder    string
	Model     string
	// AppendOutput is called with every chunk of session output that
	// should be persisted and mirrored to the UI (the header this package
	// writes, plus whatever the agent channel streams back).
	AppendOutput func(text string)
}

// FailureTracker detects a run of identical failures so an assist loop
// can stop early instead of retrying a problem the agent cannot fix.
type FailureTracker struct {
	maxIdenticalFailureStreak int
	previousFingerprint       string
	streak                    int
}

// NewFailureTracker creates a tracker allowing at most
// maxIdenticalFailureStreak consecutive identical failures.
func NewFailureTracker(maxIdenticalFailureStreak int) *FailureTracker {
	return &FailureTracker{maxIdenticalFailureStreak: maxIdenticalFailureStreak}
}

// Observe records one failure fingerprint and reports whether the
// identical-failure streak has now exceeded the configured limit. An
// empty (after trimming) fingerprint resets the streak without counting
// as a failure of its own.
func (t *FailureTracker) Observe(fingerprint string) bool {
	normalized := strings.ToLower(strings.TrimSpace(fingerprint))
	if normalized == "" {
		t.previousFingerprint = ""
		t.streak = 0
		return false
	}

	if t.previousFingerprint == normalized {
		t.streak++
	} else {
		t.previousFingerprint = normalized
		t.streak = 1
	}

	return t.streak > t.maxIdenticalFailureStreak
}

// Streak returns the length of the current run of identical failures, as
// last reported by Observe.
func (t *FailureTracker) Streak() int {
	return t.streak
}

// FormatDetailLines renders newline-separated detail text as "- item"
// bullet lines, dropping blank lines.
func FormatDetailLines(detail string) string {
	var lines []string
	for _, line := range strings.Split(detail, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lines = append(lines, "- "+trimmed)
	}
	return strings.Join(lines, "\n")
}

// AppendHeader writes a normalized "[<label> Assist] Attempt n/max. ..."
// banner to the session output before an assist attempt runs.
func (c *Context) AppendHeader(label string, attempt, maxAttempts int, action, detail string) {
	header := fmt.Sprintf("\n[%s Assist] Attempt %d/%d. %s\n%s\n", label, attempt, maxAttempts, action, detail)
	c.AppendOutput(header)
}

// Run executes one assistance attempt: a resume turn seeded with prompt,
// streaming assistant output through AppendOutput as it arrives.
func (c *Context) Run(ctx context.Context, prompt string) error {
	events := make(chan channel.TurnEvent, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for event := range events {
			if event.Kind == channel.EventAssistantDelta || event.Kind == channel.EventProgress {
				c.AppendOutput(event.Text)
			}
		}
	}()

	_, err := c.Channel.RunTurn(ctx, c.SessionID, channel.TurnRequest{
		Folder: c.Folder,
		Model:  c.Model,
		Mode:   channel.TurnResume,
		Prompt: prompt,
	}, events)

	close(events)
	<-done

	return err
}
