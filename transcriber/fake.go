package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeTranscriber returns a canned result and records what it was asked.
// Setting Block makes each call wait until the channel is closed or the
// context ends.
type FakeTranscriber struct {
	text  string
	err   error
	Block chan struct{}

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	AudioBase64 string
	MIMEType    string
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(ctx context.Context, audioBase64, mimeType string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{AudioBase64: audioBase64, MIMEType: mimeType})
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, fmt.Errorf("fake transcriber error: %w", f.err)
	}
	if f.text == "" {
		return nil, ErrEmptyResponse
	}
	return &Result{
		Text:     f.text,
		Model:    "fake",
		Metrics:  &NetworkMetrics{Total: 10 * time.Millisecond},
		Duration: 10 * time.Millisecond,
	}, nil
}

func (f *FakeTranscriber) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
