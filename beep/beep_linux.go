//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"voicenote/log"
)

func playSamples(mono []int16) {
	if len(mono) == 0 {
		return
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("voicenote"))
	if err != nil {
		log.Warnf("pulse playback error: %v", err)
		return
	}
	defer c.Close()

	// Interleave to stereo to match the default sink.
	samples := make([]int16, len(mono)*2)
	for i, s := range mono {
		samples[i*2] = s
		samples[i*2+1] = s
	}

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("pulse playback error: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}
