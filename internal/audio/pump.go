package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
)

type sampleWriter interface {
	Write(buf *goaudio.IntBuffer) error
}

// pumpPCM copies signed 16-bit little-endian PCM from src into sink until
// src is exhausted and returns the number of samples written.
func pumpPCM(src io.Reader, sink sampleWriter, format *goaudio.Format, chunkSize int) (int, error) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	var carry []byte
	written := 0
	for {
		n, err := src.Read(buf)
		if n > 0 {
			data := buf[:n]
			if len(carry) > 0 {
				data = append(carry, data...)
				carry = nil
			}
			if len(data)%2 == 1 {
				carry = []byte{data[len(data)-1]}
				data = data[:len(data)-1]
			}
			if len(data) > 0 {
				samples := decodeS16LE(data)
				if writeErr := sink.Write(&goaudio.IntBuffer{Format: format, Data: samples, SourceBitDepth: 16}); writeErr != nil {
					return written, fmt.Errorf("write samples: %w", writeErr)
				}
				written += len(samples)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return written, nil
			}
			return written, fmt.Errorf("read pcm: %w", err)
		}
	}
}

func decodeS16LE(data []byte) []int {
	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return samples
}
