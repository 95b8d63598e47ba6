package audio

import (
	"fmt"
	"math"
)

// Convert resamples and remixes wave so it matches target.
func Convert(wave Waveform, target Format) (Waveform, error) {
	remixed, err := Remix(wave, target.Channels)
	if err != nil {
		return Waveform{}, err
	}
	return Resample(remixed, target.SampleRate)
}

// Remix changes the channel count: mono targets average all channels,
// mono sources are replicated, equal counts pass through.
func Remix(wave Waveform, channels int) (Waveform, error) {
	src := wave.Channels()
	switch {
	case channels <= 0:
		return Waveform{}, fmt.Errorf("target channel count must be positive, got %d", channels)
	case src == channels:
		return wave, nil
	case channels == 1:
		frames := wave.Frames()
		mono := make([]float32, frames)
		for _, samples := range wave.Samples {
			for i, s := range samples {
				mono[i] += s
			}
		}
		scale := 1 / float32(src)
		for i := range mono {
			mono[i] *= scale
		}
		return Waveform{SampleRate: wave.SampleRate, Samples: [][]float32{mono}}, nil
	case src == 1:
		out := Waveform{SampleRate: wave.SampleRate, Samples: make([][]float32, channels)}
		for ch := range out.Samples {
			out.Samples[ch] = append([]float32(nil), wave.Samples[0]...)
		}
		return out, nil
	default:
		return Waveform{}, fmt.Errorf("cannot remix %d channels into %d", src, channels)
	}
}

// Resample converts wave to rate with linear interpolation.
func Resample(wave Waveform, rate int) (Waveform, error) {
	if rate <= 0 {
		return Waveform{}, fmt.Errorf("target sample rate must be positive, got %d", rate)
	}
	if wave.SampleRate == rate {
		return wave, nil
	}
	if wave.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("source sample rate must be positive, got %d", wave.SampleRate)
	}

	frames := wave.Frames()
	outFrames := int(math.Round(float64(frames) * float64(rate) / float64(wave.SampleRate)))
	step := float64(wave.SampleRate) / float64(rate)

	out := Waveform{SampleRate: rate, Samples: make([][]float32, wave.Channels())}
	for ch, samples := range wave.Samples {
		dst := make([]float32, outFrames)
		for i := range dst {
			pos := float64(i) * step
			idx := int(pos)
			if idx >= frames-1 {
				dst[i] = samples[frames-1]
				continue
			}
			frac := float32(pos - float64(idx))
			dst[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		}
		out.Samples[ch] = dst
	}
	return out, nil
}
