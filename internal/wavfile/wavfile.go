// Package wavfile turns drained capture segments into a 16-bit PCM WAV
// file. Segments are Base64-encoded blocks of raw interleaved float32
// samples as produced by the recorder.
package wavfile

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Float32ToInt16 linearly scales a [-1,1] sample to the int16 range,
// clamping at the boundaries.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	// Use 32767 for positive max to avoid overflow
	return int16(x * 32767.0)
}

// DecodeSegments reverses the recorder's encoding: each segment is Base64
// over raw little-endian float32 samples. Trailing bytes that do not form a
// whole sample are dropped.
func DecodeSegments(segments []string) ([]float32, error) {
	var samples []float32
	for i, seg := range segments {
		raw, err := base64.StdEncoding.DecodeString(seg)
		if err != nil {
			return nil, fmt.Errorf("decode segment %d: %w", i, err)
		}
		for off := 0; off+4 <= len(raw); off += 4 {
			bits := binary.LittleEndian.Uint32(raw[off : off+4])
			samples = append(samples, math.Float32frombits(bits))
		}
	}
	return samples, nil
}

// Write scales the samples to 16-bit PCM and writes a canonical WAV file.
func Write(path string, sampleRate, numChannels int, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(Float32ToInt16(s))
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}
