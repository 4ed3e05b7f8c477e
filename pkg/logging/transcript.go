// Package logging provides the per-run exchange transcript. Every prompt
// submitted to the web UI and every reply read back is appended to a run
// file under the state directory, which is the main debugging aid when the
// UI misbehaves: the transcript shows exactly what the page saw.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxEntryLen truncates transcript entries; replies can be very large and
// the transcript is for inspection, not archival.
const maxEntryLen = 4000

// Transcript is an append-only exchange log for one process run.
type Transcript struct {
	runID  string
	file   *os.File
	logger *log.Logger

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewTranscript opens a transcript file named after a fresh run ID inside
// dir. If the directory or file cannot be created it returns a transcript
// that writes to stderr, along with the error, so callers can log the
// degradation but keep running.
func NewTranscript(dir string) (*Transcript, error) {
	runID := uuid.New().String()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fallbackTranscript(runID), fmt.Errorf("failed to create transcript dir: %w", err)
	}

	path := filepath.Join(dir, runID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fallbackTranscript(runID), fmt.Errorf("failed to open transcript file: %w", err)
	}

	return &Transcript{
		runID:  runID,
		file:   file,
		logger: log.New(file, "", 0),
	}, nil
}

func fallbackTranscript(runID string) *Transcript {
	return &Transcript{
		runID:  runID,
		logger: log.New(os.Stderr, "[transcript] ", 0),
	}
}

// PromptSubmitted records an outgoing prompt.
func (t *Transcript) PromptSubmitted(requestID, prompt string) {
	t.write("-->", requestID, prompt)
}

// ReplyReceived records an extracted reply.
func (t *Transcript) ReplyReceived(requestID, reply string) {
	t.write("<--", requestID, reply)
}

// ExchangeFailed records a failed submit/await cycle.
func (t *Transcript) ExchangeFailed(requestID string, err error) {
	t.write("x--", requestID, err.Error())
}

func (t *Transcript) write(direction, requestID, body string) {
	if t == nil {
		return
	}
	if len(body) > maxEntryLen {
		body = body[:maxEntryLen] + fmt.Sprintf("... [%d bytes total]", len(body))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Printf("[%s] %s %s\n%s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), direction, requestID, body)
}

// RunID returns the run identifier this transcript is named after.
func (t *Transcript) RunID() string {
	return t.runID
}

// Close closes the underlying file. Safe to call multiple times and on a
// stderr-fallback transcript.
func (t *Transcript) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.file != nil {
			err = t.file.Close()
		}
	})
	return err
}
