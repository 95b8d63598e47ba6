package audio

import (
	"fmt"
	"time"
)

// Format is a sample rate and channel layout pair.
type Format struct {
	SampleRate int
	Channels   int
}

// String renders the format as "24000 Hz / 1 ch".
func (f Format) String() string {
	return fmt.Sprintf("%d Hz / %d ch", f.SampleRate, f.Channels)
}

// Waveform is planar float audio in [-1, 1], one slice per channel.
type Waveform struct {
	SampleRate int
	Samples    [][]float32
}

// NewWaveform allocates a silent waveform of the given size.
func NewWaveform(format Format, frames int) Waveform {
	samples := make([][]float32, format.Channels)
	for ch := range samples {
		samples[ch] = make([]float32, frames)
	}
	return Waveform{SampleRate: format.SampleRate, Samples: samples}
}

// Channels returns the channel count.
func (w Waveform) Channels() int {
	return len(w.Samples)
}

// Frames returns the number of samples per channel.
func (w Waveform) Frames() int {
	if len(w.Samples) == 0 {
		return 0
	}
	return len(w.Samples[0])
}

// Format returns the waveform's rate and layout.
func (w Waveform) Format() Format {
	return Format{SampleRate: w.SampleRate, Channels: w.Channels()}
}

// Duration returns the audio length.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(w.Frames()) / float64(w.SampleRate) * float64(time.Second))
}

// Slice returns frames [start, end) sharing the underlying buffers.
func (w Waveform) Slice(start, end int) Waveform {
	frames := w.Frames()
	if start < 0 {
		start = 0
	}
	if end > frames {
		end = frames
	}
	if start > end {
		start = end
	}
	out := Waveform{SampleRate: w.SampleRate, Samples: make([][]float32, len(w.Samples))}
	for ch, samples := range w.Samples {
		out.Samples[ch] = samples[start:end:end]
	}
	return out
}

// Interleaved returns frame-major samples (L R L R ...).
func (w Waveform) Interleaved() []float32 {
	channels := w.Channels()
	frames := w.Frames()
	out := make([]float32, frames*channels)
	for ch, samples := range w.Samples {
		for i, s := range samples {
			out[i*channels+ch] = s
		}
	}
	return out
}
