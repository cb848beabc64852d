package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voicenote/audio"
	"voicenote/beep"
	"voicenote/clipboard"
	"voicenote/editor"
	"voicenote/session"
	"voicenote/transcriber"
)

var (
	fakeTranscriptFlag string
	fakeErrorFlag      string
)

// scriptCmd drives a session from stdin with a WAV file standing in for the
// microphone. Integration tests use it.
var scriptCmd = &cobra.Command{
	Use:    "script <wav-file>",
	Short:  "Headless stdin-driven session (testing)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		beep.Disable()

		a, err := bootstrap("script", nil)
		if err != nil {
			return err
		}

		fakeCtx, err := audio.NewFakeContextFromWAV(args[0], true)
		if err != nil {
			a.close(nil)
			return fmt.Errorf("loading WAV: %w", err)
		}

		trans := a.trans
		if fakeTranscriptFlag != "" || fakeErrorFlag != "" {
			var ferr error
			if fakeErrorFlag != "" {
				ferr = errors.New(fakeErrorFlag)
			}
			trans = transcriber.NewFake(fakeTranscriptFlag, ferr)
		}

		out := cmd.OutOrStdout()
		clip := &clipboard.Memory{}
		ed := editor.New(clip, editor.WithMetrics(a.metrics))
		rec := audio.NewRecorder(fakeCtx, nil, audio.WithSilenceWarning(func(ev audio.SilenceEvent) {
			fmt.Fprintf(out, "silence %s\n", ev)
		}))
		ctrl := session.New(a.ctx, rec, trans,
			session.WithSink(session.Sinks(ed, eventPrinter{w: out})),
			session.WithMetrics(a.metrics),
		)
		defer a.close(ctrl)

		return runScript(cmd.InOrStdin(), out, ctrl, ed, clip, a.cfg.SaveDir)
	},
}

func init() {
	scriptCmd.Flags().StringVar(&fakeTranscriptFlag, "fake-transcript", "", "answer every request with this text instead of calling Gemini")
	scriptCmd.Flags().StringVar(&fakeErrorFlag, "fake-error", "", "fail every request with this error instead of calling Gemini")
}

// runScript executes one command per line until QUIT or end of input.
// Failed commands are reported and do not stop the script.
func runScript(in io.Reader, out io.Writer, ctrl *session.Controller, ed *editor.Buffer, clip *clipboard.Memory, saveDir string) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		verb, arg, _ := strings.Cut(line, " ")

		var err error
		switch strings.ToUpper(verb) {
		case "RECORD":
			err = ctrl.StartRecording()
		case "STOP":
			_, err = ctrl.StopRecording()
		case "OPEN":
			_, err = ctrl.SelectFile(arg)
		case "WAIT":
			ctrl.Wait()
		case "SLEEP":
			ms, perr := strconv.Atoi(arg)
			if perr != nil {
				err = fmt.Errorf("SLEEP: %w", perr)
				break
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case "RESET":
			err = ctrl.Reset()
		case "EDIT":
			ed.SetText(strings.ReplaceAll(arg, `\n`, "\n"))
		case "COPY":
			if err = ed.Copy(); err == nil {
				fmt.Fprintf(out, "copied %d bytes\n", len(clip.Text()))
			}
		case "SAVE":
			var path string
			if path, err = ed.Save(saveDir); err == nil {
				fmt.Fprintf(out, "saved %s\n", path)
			}
		case "STATUS":
			snap := ctrl.Snapshot()
			fmt.Fprintf(out, "status %s\n", snap.State)
		case "TEXT":
			fmt.Fprintf(out, "text %q\n", ed.Text())
		case "QUIT":
			return nil
		default:
			err = fmt.Errorf("unknown command %q", verb)
		}
		if err != nil {
			fmt.Fprintf(out, "error %v\n", err)
		}
	}
	return scanner.Err()
}

// eventPrinter writes one line per controller event.
type eventPrinter struct{ w io.Writer }

func (e eventPrinter) StatusChanged(s session.Snapshot) {
	fmt.Fprintf(e.w, "status %s\n", s.State)
	if s.Status == session.Failed {
		fmt.Fprintf(e.w, "error %s\n", s.Error)
	}
}

func (e eventPrinter) RecordingTick(seconds int) { fmt.Fprintf(e.w, "tick %d\n", seconds) }
func (e eventPrinter) Notice(msg string)         { fmt.Fprintf(e.w, "notice %s\n", msg) }
