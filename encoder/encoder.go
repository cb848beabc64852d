// Package encoder turns captured 16-bit PCM into a compressed payload that
// can be sent as inline audio.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	MIMEType() string
	TotalFrames() uint64
}

// PCMToSamples converts little-endian 16-bit PCM into samples. A trailing odd
// byte is dropped.
func PCMToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return samples
}

// EncodeAll feeds samples to enc in BlockSize chunks and closes it.
func EncodeAll(enc Encoder, samples []int16) error {
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return err
		}
	}
	return enc.Close()
}
