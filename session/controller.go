// Package session drives one transcription at a time: it takes audio from
// the microphone or a file, sends it to the transcriber and tracks the
// resulting status.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicenote/audio"
	"voicenote/audioutil"
	"voicenote/intake"
	"voicenote/log"
	"voicenote/metrics"
	"voicenote/transcriber"
)

const (
	MessageFailed     = "處理失敗：請檢查網路連線或 API 金鑰。"
	MessageMicrophone = "無法存取麥克風，請檢查權限設定。"

	// DefaultMIMEType labels clips that carry no type of their own.
	DefaultMIMEType = "audio/mp3"
)

const (
	SourceMicrophone = "microphone"
	SourceFile       = "file"
	SourceUpload     = "upload"
)

var (
	ErrBusy      = errors.New("a transcription is already in progress")
	ErrRecording = errors.New("a recording is in progress")
)

// Recorder is the part of audio.Recorder the controller drives.
type Recorder interface {
	Start() error
	Stop() (audio.Clip, error)
	OnTick(fn func(seconds int))
	Elapsed() int
}

type Controller struct {
	ctx     context.Context
	rec     Recorder
	trans   transcriber.Transcriber
	sink    Sink
	metrics *metrics.Metrics

	mu         sync.Mutex
	status     Status
	transcript string
	errMsg     string
	submission string
	count      int
	wg         sync.WaitGroup

	// pending is set while an accepted operation, such as opening the
	// microphone, runs outside the lock. Every other operation is refused
	// until it transitions or releases.
	pending bool
}

type Option func(*Controller)

func WithSink(s Sink) Option { return func(c *Controller) { c.sink = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// New returns an idle controller. rec may be nil when no microphone is
// available; StartRecording then fails with audio.ErrMicrophone. ctx bounds
// every transcription request.
func New(ctx context.Context, rec Recorder, trans transcriber.Transcriber, opts ...Option) *Controller {
	c := &Controller{ctx: ctx, rec: rec, trans: trans, sink: nopSink{}}
	for _, o := range opts {
		o(c)
	}
	if rec != nil {
		rec.OnTick(func(seconds int) { c.currentSink().RecordingTick(seconds) })
	}
	return c
}

// AddSink attaches another sink. Front ends created after the controller
// register themselves here.
func (c *Controller) AddSink(s Sink) {
	c.mu.Lock()
	c.sink = Sinks(c.sink, s)
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     c.status,
		State:      c.status.String(),
		Transcript: c.transcript,
		Error:      c.errMsg,
		Submission: c.submission,
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) Status() Status       { return c.Snapshot().Status }
func (c *Controller) Transcript() string   { return c.Snapshot().Transcript }
func (c *Controller) ErrorMessage() string { return c.Snapshot().Error }

// Count returns the number of finished transcriptions.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// transition sets the status under the lock and publishes the new snapshot
// after releasing it.
func (c *Controller) transition(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	sink := c.sink
	c.mu.Unlock()
	sink.StatusChanged(snap)
}

func (c *Controller) currentSink() Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink
}

func (c *Controller) notice(msg string) {
	c.currentSink().Notice(msg)
}

func (c *Controller) StartRecording() error {
	c.mu.Lock()
	switch {
	case c.pending || c.status == Processing:
		c.mu.Unlock()
		return ErrBusy
	case c.status == Recording:
		c.mu.Unlock()
		return audio.ErrAlreadyRecording
	}
	if c.rec == nil {
		c.mu.Unlock()
		c.notice(MessageMicrophone)
		return fmt.Errorf("%w: no capture device", audio.ErrMicrophone)
	}
	c.pending = true
	c.mu.Unlock()

	if err := c.rec.Start(); err != nil {
		c.release()
		log.Errorf("recording start failed: %v", err)
		if errors.Is(err, audio.ErrMicrophone) {
			c.notice(MessageMicrophone)
		}
		return err
	}
	c.transition(func() {
		c.status = Recording
		c.errMsg = ""
		c.pending = false
	})
	log.Info("recording started")
	return nil
}

// StopRecording finalises the recording and submits it. The returned id
// names the submission in logs and events.
func (c *Controller) StopRecording() (string, error) {
	c.mu.Lock()
	switch {
	case c.status != Recording:
		c.mu.Unlock()
		return "", audio.ErrNotRecording
	case c.pending:
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.pending = true
	c.mu.Unlock()

	clip, err := c.rec.Stop()
	if err != nil {
		log.Errorf("recording stop failed: %v", err)
		c.transition(func() {
			c.status = Failed
			c.errMsg = MessageFailed
			c.pending = false
		})
		return "", err
	}
	c.metrics.Recorded(c.rec.Elapsed())
	return c.submit(clip, SourceMicrophone), nil
}

// SelectFile validates a file on disk and submits it.
func (c *Controller) SelectFile(path string) (string, error) {
	if err := c.acceptingInput(); err != nil {
		return "", err
	}
	clip, err := intake.Open(path)
	if err != nil {
		c.release()
		return "", c.rejected(path, err)
	}
	return c.submit(clip, SourceFile), nil
}

// Upload validates an in-memory file, as received over HTTP, and submits
// it.
func (c *Controller) Upload(name, mimeType string, data []byte) (string, error) {
	if err := c.acceptingInput(); err != nil {
		return "", err
	}
	clip, err := intake.Accept(name, mimeType, data)
	if err != nil {
		c.release()
		return "", c.rejected(name, err)
	}
	return c.submit(clip, SourceUpload), nil
}

// acceptingInput reserves the controller for a new submission. The
// reservation is held until submit or release.
func (c *Controller) acceptingInput() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.pending || c.status == Processing:
		return ErrBusy
	case c.status == Recording:
		return ErrRecording
	}
	c.pending = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

func (c *Controller) rejected(name string, err error) error {
	log.Warnf("rejected %s: %v", name, err)
	msg := intake.Notice(err)
	switch {
	case errors.Is(err, intake.ErrTooLarge):
		c.metrics.Rejected("too_large")
	case errors.Is(err, intake.ErrUnsupportedType):
		c.metrics.Rejected("unsupported_type")
	default:
		c.metrics.Rejected("unreadable")
	}
	if msg != "" {
		c.notice(msg)
	}
	return err
}

// Submit starts transcribing clip on a new goroutine. It is refused while
// processing or recording; a recording is submitted through StopRecording.
func (c *Controller) Submit(clip audio.Clip, source string) (string, error) {
	if err := c.acceptingInput(); err != nil {
		return "", err
	}
	return c.submit(clip, source), nil
}

// submit moves to processing. The caller holds the reservation.
func (c *Controller) submit(clip audio.Clip, source string) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.status = Processing
	c.pending = false
	c.transcript = ""
	c.errMsg = ""
	c.submission = id
	snap := c.snapshotLocked()
	sink := c.sink
	c.wg.Add(1)
	c.mu.Unlock()

	sink.StatusChanged(snap)
	log.Submission(id, source, clip.MIMEType, clip.Size())
	c.metrics.Submitted(source, clip.Size())

	go c.run(id, clip, source)
	return id
}

func (c *Controller) run(id string, clip audio.Clip, source string) {
	defer c.wg.Done()
	start := time.Now()

	res, err := c.transcribe(clip)
	if err != nil {
		log.Errorf("transcription %s failed: %v", id, err)
	} else {
		logResult(clip, source, res)
	}

	c.transition(func() {
		c.count++
		if err != nil {
			c.status = Failed
			c.errMsg = MessageFailed
			return
		}
		c.status = Completed
		c.transcript = res.Text
	})

	status := Completed
	if err != nil {
		status = Failed
	}
	log.SubmissionEnd(id, status.String(), time.Since(start))
	c.metrics.Finished(status.String(), time.Since(start))
}

func (c *Controller) transcribe(clip audio.Clip) (*transcriber.Result, error) {
	mimeType := clip.MIMEType
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	encoded, err := audioutil.ToBase64(c.ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("encode audio: %w", err)
	}
	return c.trans.Transcribe(c.ctx, encoded, mimeType)
}

func logResult(clip audio.Clip, source string, res *transcriber.Result) {
	m := log.Metrics{
		Source:    source,
		MIMEType:  clip.MIMEType,
		Model:     res.Model,
		AudioKB:   float64(clip.Size()) / 1024,
		EncodedKB: float64(base64Len(clip.Size())) / 1024,
	}
	var reused bool
	var proto string
	if nm := res.Metrics; nm != nil {
		m.DNSTimeMs = float64(nm.DNS.Milliseconds())
		m.TLSTimeMs = float64(nm.TLS.Milliseconds())
		m.TTFBMs = float64(nm.TTFB.Milliseconds())
		m.TotalTimeMs = float64(nm.Total.Milliseconds())
		reused, proto = nm.ConnReused, nm.TLSProtocol
	}
	log.TranscriptionMetrics(m, reused, proto)
	log.TranscriptionText(res.Text)
}

func base64Len(n int64) int64 { return (n + 2) / 3 * 4 }

// Reset returns to idle and clears the transcript and error. A recording in
// progress is discarded.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.pending || c.status == Processing {
		c.mu.Unlock()
		return ErrBusy
	}
	recording := c.status == Recording
	c.pending = true
	c.mu.Unlock()

	if recording {
		if _, err := c.rec.Stop(); err != nil {
			log.Warnf("discarding recording: %v", err)
		}
	}
	c.transition(func() {
		c.status = Idle
		c.transcript = ""
		c.errMsg = ""
		c.submission = ""
		c.pending = false
	})
	return nil
}

// Wait blocks until the in-flight transcription, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
