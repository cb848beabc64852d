// Package audioutil holds the small helpers shared by the front ends: the
// transport encoding of a clip and the recording clock format.
package audioutil

import (
	"context"
	"encoding/base64"
	"fmt"

	"voicenote/audio"
)

// ToBase64 returns the standard base64 encoding of the clip payload.
func ToBase64(ctx context.Context, clip audio.Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(clip.Data), nil
}

// FormatDuration renders whole seconds as mm:ss. Minutes are not wrapped at
// an hour. Negative input renders as 00:00.
func FormatDuration(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
