package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"gopkg.in/hraban/opus.v2"

	"encodec-converter/internal/audio"
)

const (
	opusFrameMillis   = 20
	opusMaxPacketSize = 4000
	opusEncoderName   = "libopus"
)

// frameEncoder is the subset of the libopus encoder the engine drives.
type frameEncoder interface {
	SetBitrate(bitrate int) error
	EncodeFloat32(pcm []float32, data []byte) (int, error)
}

type encoderFactory func(sampleRate, channels int) (frameEncoder, error)

func newLibopusEncoder(sampleRate, channels int) (frameEncoder, error) {
	return opus.NewEncoder(sampleRate, channels, opus.AppAudio)
}

// OpusEngine encodes windows as length-prefixed 20 ms Opus packets.
type OpusEngine struct {
	profile    Profile
	newEncoder encoderFactory
}

// NewOpusEngine probes libopus for the profile layout.
func NewOpusEngine(profile Profile) (*OpusEngine, error) {
	return newOpusEngine(profile, newLibopusEncoder)
}

func newOpusEngine(profile Profile, factory encoderFactory) (*OpusEngine, error) {
	if _, err := factory(profile.SampleRate, profile.Channels); err != nil {
		return nil, fmt.Errorf("opus %s: %w", profile.Format(), err)
	}
	return &OpusEngine{profile: profile, newEncoder: factory}, nil
}

// OpusFactory adapts NewOpusEngine to EngineFactory. libopus has no GPU
// path, so the device preference is ignored.
func OpusFactory(profile Profile, _ Device) (Engine, error) {
	return NewOpusEngine(profile)
}

// Device reports where libopus runs.
func (e *OpusEngine) Device() Device {
	return DeviceCPU
}

func (e *OpusEngine) frameSize() int {
	return e.profile.SampleRate * opusFrameMillis / 1000
}

// Encode compresses one window. A fresh encoder per window keeps windows
// independently decodable. The final frame is zero padded.
func (e *OpusEngine) Encode(chunk audio.Waveform, bitrateKbps float64) ([]byte, error) {
	if chunk.SampleRate != e.profile.SampleRate || chunk.Channels() != e.profile.Channels {
		return nil, fmt.Errorf("chunk layout %s does not match %s", chunk.Format(), e.profile.Format())
	}
	enc, err := e.newEncoder(e.profile.SampleRate, e.profile.Channels)
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	if err := enc.SetBitrate(int(math.Round(bitrateKbps * 1000))); err != nil {
		return nil, fmt.Errorf("set bitrate %.1f kbps: %w", bitrateKbps, err)
	}

	pcm := chunk.Interleaved()
	step := e.frameSize() * e.profile.Channels
	frame := make([]float32, step)
	packet := make([]byte, opusMaxPacketSize)
	out := make([]byte, 0, len(pcm)/4)
	var prefix [2]byte
	for offset := 0; offset < len(pcm); offset += step {
		n := copy(frame, pcm[offset:])
		clear(frame[n:])
		size, err := enc.EncodeFloat32(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("encode frame at %d: %w", offset/e.profile.Channels, err)
		}
		binary.BigEndian.PutUint16(prefix[:], uint16(size))
		out = append(out, prefix[:]...)
		out = append(out, packet[:size]...)
	}
	return out, nil
}

// Save writes the chunk sequence as an artifact container.
func (e *OpusEngine) Save(chunks []EncodedChunk, path string) error {
	manifest := Manifest{
		Encoder:     opusEncoderName,
		Variant:     string(e.profile.Variant),
		SampleRate:  e.profile.SampleRate,
		Channels:    e.profile.Channels,
		Device:      string(e.Device()),
		FrameMillis: opusFrameMillis,
	}
	if len(chunks) > 0 {
		manifest.Bitrate = chunks[0].Bitrate
	}
	return WriteContainer(path, manifest, chunks)
}

// SplitPackets undoes the length prefixing applied by Encode.
func SplitPackets(payload []byte) ([][]byte, error) {
	var packets [][]byte
	for len(payload) > 0 {
		if len(payload) < 2 {
			return nil, fmt.Errorf("%w: truncated packet header", ErrInvalidContainer)
		}
		size := int(binary.BigEndian.Uint16(payload))
		payload = payload[2:]
		if size > len(payload) {
			return nil, fmt.Errorf("%w: packet of %d bytes exceeds payload", ErrInvalidContainer, size)
		}
		packets = append(packets, payload[:size])
		payload = payload[size:]
	}
	return packets, nil
}
