package codec

import (
	"errors"
	"strings"

	"encodec-converter/internal/audio"
)

// ErrEngineUnavailable marks a variant whose engine failed to initialize.
var ErrEngineUnavailable = errors.New("codec engine unavailable")

// EncodedChunk is the opaque engine output for one input window.
type EncodedChunk struct {
	Index   int
	Frames  int
	Bitrate float64
	Payload []byte
}

// Engine turns audio windows into encoded payloads and persists them.
// Implementations are not assumed reentrant; callers serialize Encode.
type Engine interface {
	Encode(chunk audio.Waveform, bitrateKbps float64) ([]byte, error)
	Save(chunks []EncodedChunk, path string) error
}

// EngineFactory builds the engine bound to a profile at startup.
type EngineFactory func(profile Profile, device Device) (Engine, error)

// DeviceReporter is implemented by engines that run on a fixed device
// regardless of the preference passed to their factory.
type DeviceReporter interface {
	Device() Device
}

// Device is the execution target resolved once at startup. It is a
// preference handed to engines; the registry reports what they actually use.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Label returns the upper-case form shown in the UI.
func (d Device) Label() string {
	return strings.ToUpper(string(d))
}

// ResolveDevice picks the execution device: "cpu" forces CPU, "auto" and
// "cuda" use CUDA when nvidia-smi resolves on PATH.
func ResolveDevice(preference string, lookPath func(string) (string, error)) Device {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "cpu":
		return DeviceCPU
	default:
		if lookPath == nil {
			return DeviceCPU
		}
		if _, err := lookPath("nvidia-smi"); err == nil {
			return DeviceCUDA
		}
		return DeviceCPU
	}
}
