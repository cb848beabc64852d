package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	return tmp
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag", "/tmp/mylog", "/tmp/ignored", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"env", "", "/tmp/voicenote-env-log", "/tmp/voicenote-env-log"},
		{"relative env", "", "./here", filepath.Join(wd, "here")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VOICENOTE_LOG_PATH", tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOICENOTE_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "voicenote") {
		t.Errorf("default %q should name the app", got)
	}
}

func TestDefaultDir(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}
	home := filepath.FromSlash("/home/ann")
	for _, tt := range []struct {
		goos string
		env  map[string]string
		want string
	}{
		{"darwin", nil, filepath.Join(home, "Library", "Logs", "voicenote")},
		{"windows", map[string]string{"LOCALAPPDATA": filepath.FromSlash("/appdata")}, filepath.Join(filepath.FromSlash("/appdata"), "voicenote", "logs")},
		{"windows", nil, filepath.Join(home, "AppData", "Local", "voicenote", "logs")},
		{"linux", map[string]string{"XDG_STATE_HOME": filepath.FromSlash("/state")}, filepath.Join(filepath.FromSlash("/state"), "voicenote")},
		{"linux", nil, filepath.Join(home, ".local", "state", "voicenote")},
	} {
		if got := defaultDir(tt.goos, home, env(tt.env)); got != tt.want {
			t.Errorf("defaultDir(%s, %v) = %q, want %q", tt.goos, tt.env, got, tt.want)
		}
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)
	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionTextOneLine(t *testing.T) {
	tmp := setupLogDir(t)
	TranscriptionText("**[講者 1]**\nhello world")

	line := readFile(t, filepath.Join(tmp, "transcribe_log.txt"))
	if strings.Count(line, "\n") != 1 {
		t.Errorf("transcript should stay on one line, got %q", line)
	}
	// "2006-01-02 15:04:05\t[pid]\t\"text\"\n"
	fields := strings.Split(strings.TrimSuffix(line, "\n"), "\t")
	if len(fields) != 3 {
		t.Fatalf("want 3 tab-separated fields, got %q", line)
	}
	if fields[2] != `"**[講者 1]**\nhello world"` {
		t.Errorf("text field = %s", fields[2])
	}
}

func TestDiagnosticsEvents(t *testing.T) {
	tmp := setupLogDir(t)
	SessionStart("gemini", "gemini-2.5-flash", "tui")
	Submission("abc", "file", "audio/wav", 2048)
	TranscriptionMetrics(Metrics{Source: "file", Model: "gemini-2.5-flash", TTFBMs: 120}, true, "TLS 1.3")
	SubmissionEnd("abc", "completed", 1500*time.Millisecond)
	SessionEnd(1)

	diag := readFile(t, filepath.Join(tmp, "diagnostics_log.txt"))
	for _, want := range []string{
		"session_start", "provider=gemini", "mode=tui",
		"submission", "id=abc", "bytes=2048",
		"transcription", "conn=reused", "ttfb_ms=120",
		"submission_end", "elapsed_ms=1500",
		"session_end", "count=1",
	} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestMirror(t *testing.T) {
	var buf bytes.Buffer
	SetMirror(&buf)
	t.Cleanup(func() { SetMirror(nil) })
	setupLogDir(t)

	Submission("abc", "upload", "audio/mpeg", 2048)

	out := buf.String()
	if !strings.Contains(out, "submission") || !strings.Contains(out, "abc") {
		t.Errorf("mirror missing event, got: %q", out)
	}
}

func TestNotReadyIsNoop(t *testing.T) {
	Close()
	Info("dropped")
	TranscriptionMetrics(Metrics{Model: "m"}, true, "TLS 1.3")
	TranscriptionText("dropped")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)
	Close()
	Close()
}
