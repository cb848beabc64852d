// Package clipboard reaches the system clipboard.
package clipboard

import (
	"errors"
	"sync"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")

// Writer is what the transcript editor copies into.
type Writer interface {
	Copy(text string) error
}

// System is the OS clipboard.
type System struct{}

func (System) Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

func (System) Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

// Available reports whether a clipboard backend was found at startup.
func Available() bool { return !cb.Unsupported }

// Memory is an in-process clipboard used when no system one exists and in
// tests. It is safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	text string
	err  error
}

// SetErr makes later copies fail with err. Nil restores them.
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Memory) Copy(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.err
}

// Text returns the last successful copy.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
