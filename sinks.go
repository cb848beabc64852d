package main

import (
	"fmt"
	"io"
	"sync"

	"voicenote/audio"
	"voicenote/beep"
	"voicenote/session"
)

// beepSink plays a tone when recording starts or stops and when a
// transcription fails.
type beepSink struct {
	mu   sync.Mutex
	last session.Status
}

func (b *beepSink) StatusChanged(s session.Snapshot) {
	b.mu.Lock()
	prev := b.last
	b.last = s.Status
	b.mu.Unlock()

	switch {
	case s.Status == session.Recording && prev != session.Recording:
		go beep.PlayStart()
	case prev == session.Recording && s.Status != session.Recording:
		go beep.PlayStop()
	case s.Status == session.Failed && prev != session.Failed:
		go beep.PlayAlert()
	}
}

func (b *beepSink) RecordingTick(int) {}
func (b *beepSink) Notice(string)     { go beep.PlayAlert() }

// noticeWriter prints controller notices, for the non-interactive commands.
type noticeWriter struct{ w io.Writer }

func (n noticeWriter) StatusChanged(session.Snapshot) {}
func (n noticeWriter) RecordingTick(int)              {}
func (n noticeWriter) Notice(msg string)              { fmt.Fprintln(n.w, msg) }

const noticeNoVoice = "未偵測到語音，請確認麥克風是否正常收音。"

// tuiSilence surfaces the recorder's voice detection in the TUI.
func tuiSilence(ev audio.SilenceEvent) {
	switch ev {
	case audio.SilenceWarn, audio.SilenceRepeat:
		tuiSend(NoticeMsg{Text: noticeNoVoice})
		go beep.PlayAlert()
	case audio.SilenceClear:
		tuiSend(NoticeMsg{})
	}
}
