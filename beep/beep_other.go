//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"voicenote/log"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	soundOnce sync.Once

	// Playback state, read from the device callback.
	current atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo playback init: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("malgo playback device: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	clear(out)
	buf := current.Load()
	if buf == nil {
		return
	}
	pos := playPos.Load()
	total := uint32(len(*buf))
	if pos >= total {
		current.Store(nil)
		return
	}
	n := min(frameCount*2, total-pos)
	copy(out[:n], (*buf)[pos:pos+n])
	playPos.Store(pos + n)
}

func playSamples(mono []int16) {
	soundOnce.Do(initSound)
	if malgoCtx == nil || len(mono) == 0 {
		return
	}

	buf := make([]byte, len(mono)*2)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}
	device.Stop()
	playPos.Store(0)
	current.Store(&buf)

	if err := device.Start(); err != nil {
		// Recreate the device; macOS invalidates it across sleep.
		device.Uninit()
		if err := initDevice(); err != nil {
			current.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}
