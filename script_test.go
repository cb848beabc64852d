package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"voicenote/audio"
	"voicenote/clipboard"
	"voicenote/editor"
	"voicenote/session"
	"voicenote/transcriber"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runTestScript(t *testing.T, trans transcriber.Transcriber, lines ...string) (string, string) {
	t.Helper()
	out := &lockedBuffer{}
	dir := t.TempDir()
	clip := &clipboard.Memory{}
	ed := editor.New(clip)
	rec := audio.NewRecorder(audio.NewFakeContext(make([]byte, 3200), false), nil)
	ctrl := session.New(context.Background(), rec, trans, session.WithSink(session.Sinks(ed, eventPrinter{w: out})))

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := runScript(in, out, ctrl, ed, clip, dir); err != nil {
		t.Fatalf("runScript: %v", err)
	}
	ctrl.Wait()
	return out.String(), dir
}

func TestScriptRecordFlow(t *testing.T) {
	out, dir := runTestScript(t, transcriber.NewFake(sampleTranscript, nil),
		"RECORD", "STOP", "WAIT", "STATUS", "COPY", "SAVE", "QUIT", "RECORD")

	for _, want := range []string{
		"status recording",
		"status processing",
		"status completed",
		"copied " + strconv.Itoa(len(sampleTranscript)) + " bytes",
		"saved " + dir,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Nothing after QUIT runs.
	if strings.Count(out, "status recording") != 1 {
		t.Errorf("expected one recording:\n%s", out)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "transcript_*.txt"))
	if len(files) != 1 {
		t.Fatalf("saved files = %v", files)
	}
	data, _ := os.ReadFile(files[0])
	if string(data) != sampleTranscript {
		t.Errorf("saved = %q", data)
	}
}

func TestScriptFailureAndReset(t *testing.T) {
	out, _ := runTestScript(t, transcriber.NewFake("", nil),
		"RECORD", "STOP", "WAIT", "RESET", "STATUS")
	for _, want := range []string{
		"status error",
		"error " + session.MessageFailed,
		"status idle",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScriptEdit(t *testing.T) {
	out, _ := runTestScript(t, transcriber.NewFake(sampleTranscript, nil),
		"RECORD", "STOP", "WAIT", `EDIT 說話者 A：修正\n第二行`, "TEXT")
	if !strings.Contains(out, `text "說話者 A：修正\n第二行"`) {
		t.Errorf("edit not applied:\n%s", out)
	}
}

func TestScriptErrors(t *testing.T) {
	out, _ := runTestScript(t, transcriber.NewFake(sampleTranscript, nil),
		"STOP", "OPEN /nonexistent/clip.mp3", "SLEEP soon", "DANCE", "# comment")
	for _, want := range []string{
		"error " + audio.ErrNotRecording.Error(),
		"error SLEEP",
		`error unknown command "DANCE"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "error ") != 4 {
		t.Errorf("expected four errors:\n%s", out)
	}
}
