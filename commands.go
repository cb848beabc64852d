package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"voicenote/audio"
	"voicenote/clipboard"
	"voicenote/doctor"
	"voicenote/editor"
	"voicenote/log"
	"voicenote/server"
	"voicenote/session"
)

var errDoctorFailed = errors.New("one or more checks failed")

var (
	addrFlag      string
	copyFlag      bool
	saveFlag      bool
	recordForFlag time.Duration
	doctorDevFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload and transcript API over HTTP",
	Long: `serve exposes file upload, transcript editing, copy and download over HTTP.
Prometheus metrics are available at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap("serve", os.Stderr)
		if err != nil {
			return err
		}
		if addrFlag != "" {
			a.cfg.Addr = addrFlag
		}

		ed := editor.New(clipboard.System{}, editor.WithMetrics(a.metrics))
		ctrl := session.New(a.ctx, nil, a.trans,
			session.WithSink(ed),
			session.WithMetrics(a.metrics),
		)
		defer a.close(ctrl)

		srv := server.New(server.Config{
			Addr:          a.cfg.Addr,
			SaveDir:       a.cfg.SaveDir,
			MaxUploadSize: a.cfg.MaxUploadSize,
		}, ctrl, ed, a.metrics)
		return srv.Run(a.ctx)
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe one audio file and print the transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap("file", nil)
		if err != nil {
			return err
		}

		ed := editor.New(clipboard.System{}, editor.WithMetrics(a.metrics))
		ctrl := session.New(a.ctx, nil, a.trans,
			session.WithSink(session.Sinks(ed, noticeWriter{w: cmd.ErrOrStderr()})),
			session.WithMetrics(a.metrics),
		)
		defer a.close(ctrl)

		if _, err := ctrl.SelectFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "正在處理音訊...")
		ctrl.Wait()

		snap := ctrl.Snapshot()
		if snap.Status == session.Failed {
			return errors.New(snap.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), snap.Transcript)

		if copyFlag {
			if err := ed.Copy(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: copy failed: %v\n", err)
			}
		}
		if saveFlag {
			path, err := ed.Save(a.cfg.SaveDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", path)
		}
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List microphone devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		actx, err := audio.NewContext()
		if err != nil {
			return fmt.Errorf("initializing audio: %w", err)
		}
		defer actx.Close()
		devices, err := actx.Devices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no capture devices found")
			return nil
		}
		for _, d := range devices {
			fmt.Fprintln(cmd.OutOrStdout(), d.Name)
		}
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run system diagnostics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap("doctor", nil)
		if err != nil {
			return err
		}
		defer a.close(nil)

		var dev *audio.DeviceInfo
		actx, err := audio.NewContext()
		if err == nil {
			defer actx.Close()
			if doctorDevFlag != "" {
				dev, _ = audio.FindDevice(actx, doctorDevFlag)
			}
		} else {
			actx = nil
		}

		code := doctor.Run(a.ctx, doctor.Options{
			Out:           cmd.OutOrStdout(),
			Audio:         actx,
			Device:        dev,
			Transcriber:   a.trans,
			HasCredential: a.cfg.HasCredential(),
			Clipboard:     clipboard.System{},
			SaveDir:       a.cfg.SaveDir,
			RecordFor:     recordForFlag,
			Interactive:   term.IsTerminal(int(os.Stdin.Fd())),
		})
		if code != 0 {
			log.Warn("doctor reported failures")
			return errDoctorFailed
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default from VOICENOTE_ADDR or 127.0.0.1:8080)")

	transcribeCmd.Flags().BoolVar(&copyFlag, "copy", false, "copy the transcript to the clipboard")
	transcribeCmd.Flags().BoolVar(&saveFlag, "save", false, "save the transcript as transcript_<timestamp>.txt")

	doctorCmd.Flags().DurationVar(&recordForFlag, "record", 3*time.Second, "length of the microphone test recording")
	doctorCmd.Flags().StringVar(&doctorDevFlag, "device", "", "microphone device to test")
}
