package transcription

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

const (
	engineSampleRate = 16000
	pcmScale         = 32768.0
)

var errUnsupportedAudio = errors.New("recording must be 16 kHz mono 16-bit PCM")

// readWAV decodes a recording into normalized float samples.
func readWAV(path string) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	if decoder.SampleRate != engineSampleRate || decoder.NumChans != 1 || decoder.BitDepth != 16 {
		return nil, fmt.Errorf("%w: got %d Hz, %d channels, %d bit", errUnsupportedAudio, decoder.SampleRate, decoder.NumChans, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / pcmScale
	}
	return samples, nil
}
