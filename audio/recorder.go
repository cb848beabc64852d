package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"voicenote/encoder"
)

var (
	ErrAlreadyRecording = errors.New("recording already active")
	ErrNotRecording     = errors.New("no active recording")
)

const tickInterval = time.Second

// Ticker abstracts time.Ticker so tests can drive the elapsed counter.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

type RecorderOption func(*Recorder)

// WithTicker replaces the one-second wall clock ticker.
func WithTicker(fn func() Ticker) RecorderOption {
	return func(r *Recorder) { r.newTicker = fn }
}

// WithEncoder replaces the FLAC encoder used to finalise a recording.
func WithEncoder(fn func() (encoder.Encoder, error)) RecorderOption {
	return func(r *Recorder) { r.newEncoder = fn }
}

// WithSilenceWarning enables voice detection; fn receives every non-none
// silence event from the tick goroutine.
func WithSilenceWarning(fn func(SilenceEvent)) RecorderOption {
	return func(r *Recorder) {
		r.onSilence = fn
		r.detector = &speechDetector{}
	}
}

// Recorder owns one microphone session at a time. The capture device is
// opened on Start and released on Stop.
type Recorder struct {
	ctx        Context
	device     *DeviceInfo
	config     CaptureConfig
	newTicker  func() Ticker
	newEncoder func() (encoder.Encoder, error)
	onSilence  func(SilenceEvent)
	detector   *speechDetector

	mu       sync.Mutex
	onTick   func(seconds int)
	capture  CaptureDevice
	chunks   [][]byte
	elapsed  int
	active   bool
	stopTick chan struct{}
	tickDone chan struct{}
	monitor  *SilenceMonitor
}

func NewRecorder(ctx Context, device *DeviceInfo, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ctx:    ctx,
		device: device,
		config: CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels},
		newTicker: func() Ticker {
			return realTicker{time.NewTicker(tickInterval)}
		},
		newEncoder: func() (encoder.Encoder, error) { return encoder.NewFlac() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnTick registers fn to receive the elapsed seconds after every tick.
func (r *Recorder) OnTick(fn func(seconds int)) {
	r.mu.Lock()
	r.onTick = fn
	r.mu.Unlock()
}

// SetDevice switches the device used by the next Start.
func (r *Recorder) SetDevice(device *DeviceInfo) {
	r.mu.Lock()
	r.device = device
	r.mu.Unlock()
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrAlreadyRecording
	}

	capture, err := r.ctx.NewCapture(r.device, r.config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophone, err)
	}

	r.chunks = nil
	r.elapsed = 0
	if r.detector != nil {
		r.detector.Reset()
		r.monitor = NewSilenceMonitor()
	}
	detector := r.detector
	capture.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		if detector != nil {
			detector.Process(data)
		}
		pcm := make([]byte, len(data))
		copy(pcm, data)
		r.mu.Lock()
		if r.active {
			r.chunks = append(r.chunks, pcm)
		}
		r.mu.Unlock()
	})

	// active must be set before Start: non-realtime devices deliver data
	// synchronously from inside Start.
	r.active = true
	r.mu.Unlock()
	err = capture.Start()
	r.mu.Lock()
	if err != nil {
		r.active = false
		r.chunks = nil
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("%w: %v", ErrMicrophone, err)
	}

	// Stop refuses the session until stopTick is set.
	r.capture = capture
	r.stopTick = make(chan struct{})
	r.tickDone = make(chan struct{})
	go r.tickLoop(r.newTicker(), r.stopTick, r.tickDone)
	return nil
}

func (r *Recorder) tickLoop(t Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			r.mu.Lock()
			r.elapsed++
			n := r.elapsed
			fn := r.onTick
			r.mu.Unlock()
			if fn != nil {
				fn(n)
			}
		}
	}
}

// Stop ends the session, releases the device and returns the encoded clip.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	if !r.active || r.stopTick == nil {
		r.mu.Unlock()
		return Clip{}, ErrNotRecording
	}
	stop, done, capture := r.stopTick, r.tickDone, r.capture
	r.stopTick = nil
	r.mu.Unlock()

	close(stop)
	<-done
	capture.Stop()
	capture.ClearCallback()
	capture.Close()

	r.mu.Lock()
	chunks := r.chunks
	r.chunks = nil
	r.capture = nil
	r.active = false
	r.mu.Unlock()

	var size int
	for _, c := range chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	enc, err := r.newEncoder()
	if err != nil {
		return Clip{}, err
	}
	if err := encoder.EncodeAll(enc, encoder.PCMToSamples(pcm)); err != nil {
		return Clip{}, fmt.Errorf("encoding recording: %w", err)
	}
	return Clip{
		Name:     "recording",
		MIMEType: enc.MIMEType(),
		Data:     enc.Bytes(),
	}, nil
}
