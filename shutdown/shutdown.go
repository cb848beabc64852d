// Package shutdown ties the process lifetime to termination signals.
package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a context canceled on the first interrupt or terminate
// signal. Canceling it abandons any in-flight transcription request.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}
