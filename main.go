package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"voicenote/audio"
	"voicenote/beep"
	"voicenote/clipboard"
	"voicenote/config"
	"voicenote/editor"
	"voicenote/log"
	"voicenote/metrics"
	"voicenote/session"
	"voicenote/shutdown"
	"voicenote/transcriber"
)

var version = "dev"

var (
	logPathFlag string
	modelFlag   string
	saveDirFlag string
	deviceFlag  string
	setupFlag   bool
	noBeepFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "voicenote",
	Short: "Record or upload audio and get a speaker-labelled transcript from Gemini",
	Long: `voicenote records from the microphone, or takes an audio file, sends it to
Gemini together with a transcription prompt and shows an editable,
speaker-labelled transcript that can be copied or saved as a text file.

Set GEMINI_API_KEY (or API_KEY) in the environment or a .env file.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logPathFlag, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Gemini model (default "+transcriber.DefaultModel+")")
	rootCmd.PersistentFlags().StringVar(&saveDirFlag, "save-dir", "", "directory for saved transcripts")

	rootCmd.Flags().StringVar(&deviceFlag, "device", "", "use named microphone device")
	rootCmd.Flags().BoolVar(&setupFlag, "setup", false, "select microphone device interactively")
	rootCmd.Flags().BoolVar(&noBeepFlag, "no-beep", false, "disable feedback tones")

	rootCmd.AddCommand(serveCmd, transcribeCmd, devicesCmd, doctorCmd, versionCmd, scriptCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command shares once configuration is loaded.
type app struct {
	cfg     config.Config
	ctx     context.Context
	cancel  context.CancelFunc
	trans   transcriber.Transcriber
	metrics *metrics.Metrics
}

// bootstrap loads configuration, starts logging and builds the transcriber.
// mirror, when set, receives a console copy of the diagnostics log.
func bootstrap(mode string, mirror io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if saveDirFlag != "" {
		cfg.SaveDir = saveDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logPath, err := log.ResolveDir(logPathFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if mirror != nil {
		log.SetMirror(mirror)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	if cfg.EnvFile != "" {
		log.Infof("loaded %s", cfg.EnvFile)
	}
	if !cfg.HasCredential() {
		log.Warn(transcriber.ErrNoCredential.Error())
	}

	gem := transcriber.NewGemini(cfg.APIKey,
		transcriber.WithModel(cfg.Model),
		transcriber.WithTemperature(cfg.Temperature),
	)
	log.SessionStart(gem.Name(), gem.Model(), mode)

	ctx, cancel := shutdown.Context(context.Background())
	return &app{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		trans:   gem,
		metrics: metrics.New(),
	}, nil
}

func (a *app) close(ctrl *session.Controller) {
	a.cancel()
	if ctrl != nil {
		ctrl.Wait()
		log.SessionEnd(ctrl.Count())
	}
	log.Close()
}

// initCrashLog appends runtime crashes to crash_log.txt in the log directory.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// openAudio connects to the sound server and builds a recorder for the
// chosen device. A missing audio stack is not fatal: the returned recorder
// is nil and only file input works.
func openAudio(deviceName string, setup bool, opts ...audio.RecorderOption) (audio.Context, *audio.Recorder, *audio.DeviceInfo) {
	actx, err := audio.NewContext()
	if err != nil {
		log.Warnf("audio context init error: %v", err)
		return nil, nil, nil
	}

	var dev *audio.DeviceInfo
	switch {
	case deviceName != "":
		dev, err = audio.FindDevice(actx, deviceName)
		if err != nil {
			log.Warnf("device %q: %v, using default", deviceName, err)
		}
	case setup:
		dev, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Println("Falling back to default device")
		}
	}
	return actx, audio.NewRecorder(actx, dev, opts...), dev
}

// asRecorder keeps a nil *audio.Recorder from becoming a non-nil interface.
func asRecorder(r *audio.Recorder) session.Recorder {
	if r == nil {
		return nil
	}
	return r
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap("tui", nil)
	if err != nil {
		return err
	}
	if noBeepFlag {
		beep.Disable()
	}

	actx, rec, dev := openAudio(deviceFlag, setupFlag, audio.WithSilenceWarning(tuiSilence))
	if actx != nil {
		defer actx.Close()
	}

	ed := editor.New(clipboard.System{},
		editor.WithMetrics(a.metrics),
		editor.OnCopiedChange(func(copied bool) { tuiSend(CopiedMsg{Copied: copied}) }),
	)
	ctrl := session.New(a.ctx, asRecorder(rec), a.trans,
		session.WithSink(session.Sinks(ed, &beepSink{}, tuiSink{})),
		session.WithMetrics(a.metrics),
	)
	defer a.close(ctrl)

	m := newTUIModel(ctrl, ed, a.cfg.SaveDir)
	m.modeLine = modeLineText(a.trans.Name(), a.cfg.Model)
	m.deviceLine = deviceLineText(dev, rec != nil)

	p := NewTUIProgram(m)
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()

	go func() {
		<-a.ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of voicenote",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voicenote %s\n", version)
	},
}
