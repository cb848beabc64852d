package session

// Status is the single live processing state of a controller.
type Status int

const (
	Idle Status = iota
	Recording
	Processing
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "error"
	}
	return "unknown"
}

// Busy reports whether inputs are disabled.
func (s Status) Busy() bool { return s == Processing }

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Status     Status `json:"-"`
	State      string `json:"status"`
	Transcript string `json:"transcript"`
	Error      string `json:"error,omitempty"`
	Submission string `json:"submission,omitempty"`
}

// Sink receives controller events. Methods are called without the
// controller lock held, possibly from the transcription goroutine.
type Sink interface {
	StatusChanged(s Snapshot)
	RecordingTick(seconds int)
	Notice(msg string)
}

type nopSink struct{}

func (nopSink) StatusChanged(Snapshot) {}
func (nopSink) RecordingTick(int)      {}
func (nopSink) Notice(string)          {}

type multiSink []Sink

// Sinks fans events out to every non-nil sink in order.
func Sinks(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) StatusChanged(s Snapshot) {
	for _, sink := range m {
		sink.StatusChanged(s)
	}
}

func (m multiSink) RecordingTick(seconds int) {
	for _, sink := range m {
		sink.RecordingTick(seconds)
	}
}

func (m multiSink) Notice(msg string) {
	for _, sink := range m {
		sink.Notice(msg)
	}
}
