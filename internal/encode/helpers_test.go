package encode

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
)

// fakeEngine records encode calls and saves through the real container.
type fakeEngine struct {
	mu          sync.Mutex
	variant     domain.Variant
	frames      []int
	failAt      int
	saveErr     error
	inFlight    int
	maxInFlight int
	beforeCall  func(call int)
}

func newFakeEngine(variant domain.Variant) *fakeEngine {
	return &fakeEngine{variant: variant, failAt: -1}
}

func (f *fakeEngine) Encode(chunk audio.Waveform, bitrateKbps float64) ([]byte, error) {
	f.mu.Lock()
	call := len(f.frames)
	f.frames = append(f.frames, chunk.Frames())
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	hook := f.beforeCall
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		hook(call)
	}
	if call == f.failAt {
		return nil, errors.New("tensor shape mismatch")
	}
	return []byte{byte(call), byte(chunk.Frames() % 251)}, nil
}

func (f *fakeEngine) Save(chunks []codec.EncodedChunk, path string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return codec.WriteContainer(path, codec.Manifest{Encoder: "fake", Variant: string(f.variant)}, chunks)
}

func (f *fakeEngine) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.frames...)
}

// newFakeRegistry binds fake engines; variants listed in broken fail init.
func newFakeRegistry(t *testing.T, engines map[domain.Variant]*fakeEngine, broken ...domain.Variant) *codec.Registry {
	t.Helper()
	factory := func(profile codec.Profile, device codec.Device) (codec.Engine, error) {
		for _, v := range broken {
			if v == profile.Variant {
				return nil, errors.New("model weights unavailable")
			}
		}
		engine, ok := engines[profile.Variant]
		if !ok {
			engine = newFakeEngine(profile.Variant)
			engines[profile.Variant] = engine
		}
		return engine, nil
	}
	return codec.NewRegistry(codec.DeviceCPU, factory, zerolog.Nop())
}

func binding(t *testing.T, variant domain.Variant, engine codec.Engine) codec.Binding {
	t.Helper()
	profile, ok := codec.LookupProfile(variant)
	require.True(t, ok)
	return codec.Binding{Profile: profile, Engine: engine}
}

// tone builds a waveform whose samples are all 0.1.
func tone(format audio.Format, frames int) audio.Waveform {
	wave := audio.NewWaveform(format, frames)
	for ch := range wave.Samples {
		for i := range wave.Samples[ch] {
			wave.Samples[ch][i] = 0.1
		}
	}
	return wave
}
