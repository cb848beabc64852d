package audio

import "errors"

// ErrMicrophone wraps any failure to open or start a capture device.
var ErrMicrophone = errors.New("microphone unavailable")

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Clip is one recording or uploaded file held in memory. Treat it as
// immutable once built.
type Clip struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (c Clip) Size() int64 { return int64(len(c.Data)) }

// FindDevice returns the device with the given name, or nil.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, nil
}
