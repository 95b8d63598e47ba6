package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

// sineWave builds a test tone with the given layout and length.
func sineWave(format Format, frames int) Waveform {
	wave := NewWaveform(format, frames)
	for ch := range wave.Samples {
		for i := range wave.Samples[ch] {
			phase := 2 * math.Pi * 440 * float64(i) / float64(format.SampleRate)
			wave.Samples[ch][i] = float32(0.5 * math.Sin(phase+float64(ch)))
		}
	}
	return wave
}

// TestEncodeDecodeWAVRoundTrip checks 16-bit PCM fidelity across channels.
func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	original := sineWave(Format{SampleRate: 24000, Channels: 2}, 1200)

	var buf bytes.Buffer
	if err := EncodeWAV(&buf, original); err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	if buf.Len() != 44+1200*2*2 {
		t.Fatalf("encoded size = %d, want %d", buf.Len(), 44+1200*2*2)
	}

	decoded, info, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if info.Format != (Format{SampleRate: 24000, Channels: 2}) || info.BitsPerSample != 16 || info.Float {
		t.Fatalf("info = %+v", info)
	}
	if decoded.Frames() != original.Frames() {
		t.Fatalf("frames = %d, want %d", decoded.Frames(), original.Frames())
	}
	for ch := 0; ch < 2; ch++ {
		for i := 0; i < original.Frames(); i++ {
			if diff := math.Abs(float64(decoded.Samples[ch][i] - original.Samples[ch][i])); diff > 1e-3 {
				t.Fatalf("sample[%d][%d] diff = %f", ch, i, diff)
			}
		}
	}
}

// TestDecodeWAVFloatWithExtraChunks covers IEEE float data and skipped chunks.
func TestDecodeWAVFloatWithExtraChunks(t *testing.T) {
	samples := []float32{0.25, -0.5, 1, -1}

	var data bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0})
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, wavFormat{
		AudioFormat:   wavFormatFloat,
		NumChannels:   1,
		SampleRate:    48000,
		ByteRate:      48000 * 4,
		BlockAlign:    4,
		BitsPerSample: 32,
	})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	wave, info, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if !info.Float || info.Format.SampleRate != 48000 {
		t.Fatalf("info = %+v", info)
	}
	for i, want := range samples {
		if wave.Samples[0][i] != want {
			t.Fatalf("sample %d = %f, want %f", i, wave.Samples[0][i], want)
		}
	}
}

// TestDecodeWAVTruncatedDataSize checks a header claiming more data than
// the stream holds decodes only the frames actually present.
func TestDecodeWAVTruncatedDataSize(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFE))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, wavFormat{
		AudioFormat:   wavFormatPCM,
		NumChannels:   2,
		SampleRate:    8000,
		ByteRate:      8000 * 2,
		BlockAlign:    2,
		BitsPerSample: 8,
	})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFE))
	buf.Write([]byte{128, 192, 64, 128})

	wave, _, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if wave.Frames() != 2 {
		t.Fatalf("frames = %d, want 2", wave.Frames())
	}
	if wave.Samples[1][0] != 0.5 || wave.Samples[0][1] != -0.5 {
		t.Fatalf("samples = %v", wave.Samples)
	}
	if got := cap(wave.Samples[0]); got > maxPreallocFrames {
		t.Fatalf("capacity = %d, want <= %d", got, maxPreallocFrames)
	}
}

// TestDecodeWAVRejectsNonRIFF checks signature validation.
func TestDecodeWAVRejectsNonRIFF(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("ID3\x03not a wav file at all")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("error = %v, want ErrInvalidWAV", err)
	}
}

// TestWriteWAVFileAndRead checks the file helpers.
func TestWriteWAVFileAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAVFile(path, sineWave(Format{SampleRate: 8000, Channels: 1}, 800)); err != nil {
		t.Fatalf("WriteWAVFile() error = %v", err)
	}

	wave, _, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile() error = %v", err)
	}
	if wave.Duration().Milliseconds() != 100 {
		t.Fatalf("duration = %s, want 100ms", wave.Duration())
	}
}

// TestEncodeWAVRejectsEmptyLayout checks argument validation.
func TestEncodeWAVRejectsEmptyLayout(t *testing.T) {
	if err := EncodeWAV(&bytes.Buffer{}, Waveform{SampleRate: 8000}); err == nil {
		t.Fatal("expected error for waveform without channels")
	}
	if err := EncodeWAV(&bytes.Buffer{}, NewWaveform(Format{SampleRate: 0, Channels: 1}, 10)); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}
