package encoder

import (
	"bytes"
	"math"
	"testing"

	"github.com/mewkiz/flac"
)

func sine(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(math.Sin(2*math.Pi*440*float64(i)/SampleRate) * 8000)
	}
	return samples
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(SampleRate * 2)

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := EncodeAll(enc, samples); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}

	data := enc.Bytes()
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	if enc.MIMEType() != "audio/flac" {
		t.Errorf("MIMEType = %q", enc.MIMEType())
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding header: %v", err)
	}
	defer stream.Close()
	if stream.Info.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", stream.Info.SampleRate, SampleRate)
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected header bytes")
	}
}

func TestFlacEncoderPartialBlock(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	partial := sine(BlockSize / 4)
	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}
}

func TestPCMToSamples(t *testing.T) {
	got := PCMToSamples([]byte{0x01, 0x00, 0xff, 0xff, 0x7f})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != 1 || got[1] != -1 {
		t.Errorf("got %v, want [1 -1]", got)
	}
}
