package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE

	decodeBlockFrames = 4096
	// maxPreallocFrames caps per-channel capacity taken from the header.
	maxPreallocFrames = decodeBlockFrames * 256
)

// ErrInvalidWAV is returned for streams that are not RIFF/WAVE audio.
var ErrInvalidWAV = errors.New("invalid WAV stream")

// wavFormat mirrors the "fmt " chunk of a RIFF/WAVE file.
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// wavHeader is the canonical 44-byte header written by EncodeWAV.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	wavFormat
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WAVInfo describes a decoded stream.
type WAVInfo struct {
	Format        Format
	BitsPerSample int
	Float         bool
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (Waveform, WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, WAVInfo{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV reads a RIFF/WAVE stream into a planar waveform.
// PCM 8/16/24/32-bit, IEEE float 32/64 and WAVE_FORMAT_EXTENSIBLE are accepted.
func DecodeWAV(r io.Reader) (Waveform, WAVInfo, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var riff [12]byte
	if _, err := io.ReadFull(br, riff[:]); err != nil {
		return Waveform{}, WAVInfo{}, fmt.Errorf("%w: read RIFF header: %v", ErrInvalidWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Waveform{}, WAVInfo{}, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidWAV)
	}

	var (
		format    wavFormat
		formatSet bool
		codec     uint16
	)
	for {
		var id [4]byte
		var size uint32
		if _, err := io.ReadFull(br, id[:]); err != nil {
			return Waveform{}, WAVInfo{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
		}
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
			return Waveform{}, WAVInfo{}, fmt.Errorf("%w: truncated chunk header", ErrInvalidWAV)
		}

		switch string(id[:]) {
		case "fmt ":
			if size < 16 {
				return Waveform{}, WAVInfo{}, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrInvalidWAV, size)
			}
			if err := binary.Read(br, binary.LittleEndian, &format); err != nil {
				return Waveform{}, WAVInfo{}, fmt.Errorf("%w: read fmt chunk: %v", ErrInvalidWAV, err)
			}
			codec = format.AudioFormat
			rest := int64(size) - 16
			if codec == wavFormatExtensible && rest >= 24 {
				var ext struct {
					CbSize      uint16
					ValidBits   uint16
					ChannelMask uint32
					SubFormat   [16]byte
				}
				if err := binary.Read(br, binary.LittleEndian, &ext); err != nil {
					return Waveform{}, WAVInfo{}, fmt.Errorf("%w: read extensible fmt: %v", ErrInvalidWAV, err)
				}
				codec = binary.LittleEndian.Uint16(ext.SubFormat[0:2])
				rest -= 24
			}
			if err := skipChunk(br, rest, size); err != nil {
				return Waveform{}, WAVInfo{}, err
			}
			formatSet = true
		case "data":
			if !formatSet {
				return Waveform{}, WAVInfo{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			info, err := wavInfo(format, codec)
			if err != nil {
				return Waveform{}, WAVInfo{}, err
			}
			wave, err := decodeSamples(br, format, info, size)
			if err != nil {
				return Waveform{}, WAVInfo{}, err
			}
			return wave, info, nil
		default:
			if err := skipChunk(br, int64(size), size); err != nil {
				return Waveform{}, WAVInfo{}, err
			}
		}
	}
}

// skipChunk discards n bytes plus the RIFF pad byte of odd-sized chunks.
func skipChunk(r *bufio.Reader, n int64, size uint32) error {
	if size%2 == 1 {
		n++
	}
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: truncated chunk: %v", ErrInvalidWAV, err)
	}
	return nil
}

func wavInfo(format wavFormat, codec uint16) (WAVInfo, error) {
	info := WAVInfo{
		Format:        Format{SampleRate: int(format.SampleRate), Channels: int(format.NumChannels)},
		BitsPerSample: int(format.BitsPerSample),
	}
	if info.Format.SampleRate <= 0 || info.Format.Channels <= 0 {
		return WAVInfo{}, fmt.Errorf("%w: %s", ErrInvalidWAV, info.Format)
	}

	switch codec {
	case wavFormatPCM:
		switch info.BitsPerSample {
		case 8, 16, 24, 32:
		default:
			return WAVInfo{}, fmt.Errorf("unsupported PCM bit depth: %d", info.BitsPerSample)
		}
	case wavFormatFloat:
		info.Float = true
		if info.BitsPerSample != 32 && info.BitsPerSample != 64 {
			return WAVInfo{}, fmt.Errorf("unsupported float bit depth: %d", info.BitsPerSample)
		}
	default:
		return WAVInfo{}, fmt.Errorf("unsupported WAV audio format: 0x%04x", codec)
	}
	return info, nil
}

func decodeSamples(r io.Reader, format wavFormat, info WAVInfo, size uint32) (Waveform, error) {
	channels := info.Format.Channels
	bytesPerSample := info.BitsPerSample / 8
	frameBytes := bytesPerSample * channels
	if int(format.BlockAlign) > frameBytes {
		frameBytes = int(format.BlockAlign)
	}

	// Streaming writers leave the size at 0 or 0xFFFFFFFF; read to EOF then.
	var limited io.Reader = r
	capacity := 0
	if size != 0 && size != math.MaxUint32 {
		limited = io.LimitReader(r, int64(size))
		capacity = min(int(size)/frameBytes, maxPreallocFrames)
	}

	wave := Waveform{SampleRate: info.Format.SampleRate, Samples: make([][]float32, channels)}
	for ch := range wave.Samples {
		wave.Samples[ch] = make([]float32, 0, capacity)
	}

	buf := make([]byte, frameBytes*decodeBlockFrames)
	for {
		n, err := io.ReadFull(limited, buf)
		frames := n / frameBytes
		for i := 0; i < frames; i++ {
			frame := buf[i*frameBytes:]
			for ch := 0; ch < channels; ch++ {
				wave.Samples[ch] = append(wave.Samples[ch], sampleAt(frame[ch*bytesPerSample:], info))
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return Waveform{}, fmt.Errorf("read WAV samples: %w", err)
		}
	}
	return wave, nil
}

func sampleAt(b []byte, info WAVInfo) float32 {
	if info.Float {
		if info.BitsPerSample == 64 {
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	switch info.BitsPerSample {
	case 8:
		return float32(int(b[0])-128) / 128
	case 16:
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float32(v) / 8388608
	default:
		return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
	}
}

// EncodeWAV writes the waveform as 16-bit PCM.
func EncodeWAV(w io.Writer, wave Waveform) error {
	channels := wave.Channels()
	if channels == 0 {
		return fmt.Errorf("cannot encode waveform without channels")
	}
	if wave.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", wave.SampleRate)
	}

	frames := wave.Frames()
	dataSize := uint32(frames * channels * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		wavFormat: wavFormat{
			AudioFormat:   wavFormatPCM,
			NumChannels:   uint16(channels),
			SampleRate:    uint32(wave.SampleRate),
			ByteRate:      uint32(wave.SampleRate * channels * 2),
			BlockAlign:    uint16(channels * 2),
			BitsPerSample: 16,
		},
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write WAV header: %w", err)
	}
	sample := make([]byte, 2)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(sample, uint16(toPCM16(wave.Samples[ch][i])))
			if _, err := bw.Write(sample); err != nil {
				return fmt.Errorf("write WAV samples: %w", err)
			}
		}
	}
	return bw.Flush()
}

// WriteWAVFile writes the waveform to path as 16-bit PCM.
func WriteWAVFile(path string, wave Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, wave); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func toPCM16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
