// Package editor holds the user-editable copy of the latest transcript.
package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voicenote/clipboard"
	"voicenote/log"
	"voicenote/metrics"
	"voicenote/session"
)

// CopiedWindow is how long the copied indicator stays on.
const CopiedWindow = 2 * time.Second

// Buffer is seeded from the controller whenever its transcript changes and
// is otherwise independent: edits never flow back.
type Buffer struct {
	clip    clipboard.Writer
	now     func() time.Time
	window  time.Duration
	metrics *metrics.Metrics

	mu       sync.Mutex
	text     string
	seed     string
	copied   bool
	copyGen  int
	onCopied func(copied bool)
}

type Option func(*Buffer)

func WithClock(now func() time.Time) Option { return func(b *Buffer) { b.now = now } }

func WithCopiedWindow(d time.Duration) Option { return func(b *Buffer) { b.window = d } }

func WithMetrics(m *metrics.Metrics) Option { return func(b *Buffer) { b.metrics = m } }

// OnCopiedChange registers fn to run when the copied indicator flips. It is
// called from a timer goroutine when the window closes.
func OnCopiedChange(fn func(copied bool)) Option { return func(b *Buffer) { b.onCopied = fn } }

func New(clip clipboard.Writer, opts ...Option) *Buffer {
	b := &Buffer{clip: clip, now: time.Now, window: CopiedWindow}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Seed replaces the buffer with text when it differs from the last seed.
// It reports whether the buffer changed.
func (b *Buffer) Seed(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if text == b.seed {
		return false
	}
	b.seed = text
	b.text = text
	return true
}

func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Buffer) Copied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copied
}

// Copy writes the buffer to the clipboard and turns the copied indicator on
// for the copied window. A failure is logged and leaves the indicator off.
func (b *Buffer) Copy() error {
	text := b.Text()
	err := b.clip.Copy(text)
	b.metrics.Copied(err)
	if err != nil {
		log.Errorf("clipboard copy failed: %v", err)
		return err
	}

	b.mu.Lock()
	b.copied = true
	b.copyGen++
	gen := b.copyGen
	cb := b.onCopied
	b.mu.Unlock()
	if cb != nil {
		cb(true)
	}

	time.AfterFunc(b.window, func() {
		b.mu.Lock()
		if gen != b.copyGen {
			b.mu.Unlock()
			return
		}
		b.copied = false
		cb := b.onCopied
		b.mu.Unlock()
		if cb != nil {
			cb(false)
		}
	})
	return nil
}

// FileName is the save name for a transcript written at t.
func FileName(t time.Time) string {
	return "transcript_" + t.UTC().Format("2006-01-02-15-04-05") + ".txt"
}

// SaveName is the file name Save would use now.
func (b *Buffer) SaveName() string { return FileName(b.now()) }

// Save writes the buffer as UTF-8 into dir and returns the file path.
func (b *Buffer) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		b.metrics.Saved(err)
		return "", fmt.Errorf("create save directory: %w", err)
	}
	path := filepath.Join(dir, b.SaveName())
	err := os.WriteFile(path, []byte(b.Text()), 0644)
	b.metrics.Saved(err)
	if err != nil {
		log.Errorf("save transcript: %v", err)
		return "", err
	}
	log.Infof("transcript saved to %s", path)
	return path, nil
}

// StatusChanged seeds the buffer from the controller, making Buffer a
// session.Sink.
func (b *Buffer) StatusChanged(s session.Snapshot) { b.Seed(s.Transcript) }
func (b *Buffer) RecordingTick(int)                {}
func (b *Buffer) Notice(string)                    {}
