// Package intake validates user-supplied audio files before they are
// transcribed.
package intake

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"voicenote/audio"
)

// MaxSize is the largest accepted upload.
const MaxSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)

const (
	NoticeUnsupported = "請上傳有效的音訊檔案 (MP3, WAV, M4A, AAC)"
	NoticeTooLarge    = "檔案過大，請上傳小於 10MB 的檔案。"
)

// extensionTypes lists the suffixes accepted regardless of the detected
// type, and the mime type sent for them when detection is inconclusive.
var extensionTypes = map[string]string{
	".aac": "audio/aac",
	".m4a": "audio/mp4",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
}

var Extensions = lo.Keys(extensionTypes)

func hasAudioExtension(name string) bool {
	return lo.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Validate checks the type first and the size second, so an oversize file of
// the wrong type reports the type error.
func Validate(name, mimeType string, size int64) error {
	if !strings.HasPrefix(mimeType, "audio/") && !hasAudioExtension(name) {
		return fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mimeType)
	}
	if size > MaxSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, name, size)
	}
	return nil
}

// Notice returns the user-facing message for a validation error, or "" when
// err is not one.
func Notice(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return NoticeUnsupported
	case errors.Is(err, ErrTooLarge):
		return NoticeTooLarge
	}
	return ""
}

// Accept validates an in-memory upload and wraps it unchanged as a clip.
func Accept(name, mimeType string, data []byte) (audio.Clip, error) {
	if err := Validate(name, mimeType, int64(len(data))); err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Name: name, MIMEType: uploadType(name, mimeType), Data: data}, nil
}

// Open loads a file from disk. The mime type is sniffed from content since a
// path carries no declared type.
func Open(path string) (audio.Clip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return audio.Clip{}, err
	}
	if info.IsDir() {
		return audio.Clip{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedType, path)
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return audio.Clip{}, err
	}
	name := filepath.Base(path)
	if err := Validate(name, detected.String(), info.Size()); err != nil {
		return audio.Clip{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Name: name, MIMEType: uploadType(name, detected.String()), Data: data}, nil
}

func uploadType(name, mimeType string) string {
	if strings.HasPrefix(mimeType, "audio/") {
		return mimeType
	}
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// ParseDrop turns text pasted by a terminal when a file is dropped on it
// into a path. Terminals quote the path, escape spaces with backslashes, or
// send a file:// URL depending on the emulator.
func ParseDrop(payload string) string {
	s := strings.TrimSpace(payload)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "file://") {
		if u, err := url.Parse(s); err == nil {
			return u.Path
		}
	}
	return strings.ReplaceAll(s, `\ `, " ")
}

// DropZone tracks whether a drop target is armed. The state is local to the
// front end and reset by every drop or leave.
type DropZone struct {
	hover bool
}

func (d *DropZone) Enter()         { d.hover = true }
func (d *DropZone) Leave()         { d.hover = false }
func (d *DropZone) Hovering() bool { return d.hover }

// Drop disarms the zone and returns the dropped path, if any.
func (d *DropZone) Drop(payload string) (string, bool) {
	d.hover = false
	path := ParseDrop(payload)
	return path, path != ""
}
