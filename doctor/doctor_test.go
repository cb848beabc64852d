package doctor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voicenote/audio"
	"voicenote/clipboard"
	"voicenote/transcriber"
)

func healthyOptions(t *testing.T, out *bytes.Buffer) Options {
	return Options{
		Out:           out,
		Audio:         audio.NewFakeContext(make([]byte, 32000), false),
		Transcriber:   transcriber.NewFake("**[講者 1]**\n測試", nil),
		HasCredential: true,
		Clipboard:     &clipboard.Memory{},
		SaveDir:       t.TempDir(),
		RecordFor:     10 * time.Millisecond,
	}
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), healthyOptions(t, &out))
	if code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	s := out.String()
	for _, want := range []string{"[1/5] Gemini credential", "[5/5] Save directory", "測試", "All checks passed!"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(s, "FAIL") {
		t.Errorf("unexpected failure:\n%s", s)
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"no credential", func(o *Options) { o.HasCredential = false }, "FAIL: set GEMINI_API_KEY"},
		{"mic denied", func(o *Options) {
			ctx := audio.NewFakeContext(nil, false)
			ctx.CaptureErr = errors.New("denied")
			o.Audio = ctx
		}, "SKIP: no recording to send"},
		{"transcriber error", func(o *Options) { o.Transcriber = transcriber.NewFake("", errors.New("quota")) }, "FAIL: fake transcriber error: quota"},
		{"clipboard error", func(o *Options) {
			mem := &clipboard.Memory{}
			mem.SetErr(errors.New("no display"))
			o.Clipboard = mem
		}, "FAIL: clipboard copy failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			opts := healthyOptions(t, &out)
			tt.mutate(&opts)
			if code := Run(context.Background(), opts); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}
