// Package doctor runs end-to-end diagnostics: credential, microphone,
// transcription, clipboard and save directory.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicenote/audio"
	"voicenote/audioutil"
	"voicenote/transcriber"
)

// Clipboard is the subset of the system clipboard the check needs.
type Clipboard interface {
	Copy(text string) error
	Read() (string, error)
}

type Options struct {
	Out           io.Writer
	Audio         audio.Context
	Device        *audio.DeviceInfo
	Transcriber   transcriber.Transcriber
	HasCredential bool
	Clipboard     Clipboard
	SaveDir       string
	RecordFor     time.Duration
	// Interactive resets the terminal first; a previous TUI run may have
	// left it in raw mode.
	Interactive bool
}

type check struct {
	name string
	run  func(ctx context.Context, st *state) (string, error)
}

// state carries results between checks.
type state struct {
	opts Options
	clip *audio.Clip
}

var errSkipped = errors.New("skipped")

var checks = []check{
	{"Gemini credential", checkCredential},
	{"Microphone", checkMicrophone},
	{"Transcription", checkTranscription},
	{"Clipboard", checkClipboard},
	{"Save directory", checkSaveDir},
}

// Run executes every check and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	if opts.Interactive {
		resetTerminal()
	}
	w := opts.Out

	fmt.Fprintln(w, "voicenote doctor - system diagnostics")
	fmt.Fprintln(w, "=====================================")

	st := &state{opts: opts}
	allPass := true
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.name)
		detail, err := c.run(ctx, st)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", detail)
		case err != nil:
			allPass = false
			fmt.Fprintf(w, "  FAIL: %v\n", err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func checkCredential(_ context.Context, st *state) (string, error) {
	if !st.opts.HasCredential {
		return "", transcriber.ErrNoCredential
	}
	return "API key found", nil
}

func checkMicrophone(ctx context.Context, st *state) (string, error) {
	actx := st.opts.Audio
	if actx == nil {
		var err error
		actx, err = audio.NewContext()
		if err != nil {
			return "", fmt.Errorf("cannot connect to audio: %w", err)
		}
		defer actx.Close()
	}
	devices, err := actx.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", errors.New("no capture devices found")
	}

	rec := audio.NewRecorder(actx, st.opts.Device)
	fmt.Fprintf(st.opts.Out, "  Speak for %s...\n", st.opts.RecordFor)
	if err := rec.Start(); err != nil {
		return "", err
	}
	select {
	case <-time.After(st.opts.RecordFor):
	case <-ctx.Done():
	}
	clip, err := rec.Stop()
	if err != nil {
		return "", fmt.Errorf("recording error: %w", err)
	}
	if clip.Size() == 0 {
		return "", errors.New("no audio captured")
	}
	st.clip = &clip
	return fmt.Sprintf("recorded %.1f KB (%s)", float64(clip.Size())/1024, clip.MIMEType), nil
}

func checkTranscription(ctx context.Context, st *state) (string, error) {
	if st.clip == nil {
		return "no recording to send", errSkipped
	}
	if st.opts.Transcriber == nil {
		return "no transcriber configured", errSkipped
	}
	encoded, err := audioutil.ToBase64(ctx, *st.clip)
	if err != nil {
		return "", err
	}
	res, err := st.opts.Transcriber.Transcribe(ctx, encoded, st.clip.MIMEType)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Text)
	fmt.Fprintf(st.opts.Out, "\n  Transcribed text:\n%s\n\n", indent(text, "    "))
	return fmt.Sprintf("%d characters from %s", len([]rune(text)), res.Model), nil
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func checkClipboard(_ context.Context, st *state) (string, error) {
	cb := st.opts.Clipboard
	if cb == nil {
		return "no clipboard configured", errSkipped
	}
	sentinel := fmt.Sprintf("voicenote-doctor-%d", time.Now().UnixNano())
	if err := cb.Copy(sentinel); err != nil {
		return "", fmt.Errorf("clipboard copy failed: %w", err)
	}
	got, err := cb.Read()
	if err != nil {
		return "", fmt.Errorf("clipboard read failed: %w", err)
	}
	if got != sentinel {
		return "", fmt.Errorf("clipboard returned %q, want %q", got, sentinel)
	}
	return "copy and read back verified", nil
}

func checkSaveDir(_ context.Context, st *state) (string, error) {
	dir := st.opts.SaveDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".voicenote-doctor-*")
	if err != nil {
		return "", fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	abs, _ := filepath.Abs(dir)
	return abs + " is writable", nil
}
