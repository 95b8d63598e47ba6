package codec

import (
	"fmt"
	"strconv"
	"strings"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/domain"
)

// Profile is the immutable format contract of one codec variant.
type Profile struct {
	Variant    domain.Variant `json:"variant"`
	SampleRate int            `json:"sampleRate"`
	Channels   int            `json:"channels"`
	Bitrates   []float64      `json:"bitrates"`
}

var profiles = map[domain.Variant]Profile{
	domain.Variant24kHz: {
		Variant:    domain.Variant24kHz,
		SampleRate: 24000,
		Channels:   1,
		Bitrates:   []float64{1.5, 3, 6, 12, 24},
	},
	domain.Variant48kHz: {
		Variant:    domain.Variant48kHz,
		SampleRate: 48000,
		Channels:   2,
		Bitrates:   []float64{3, 6, 12, 24},
	},
}

// LookupProfile returns the static profile of a variant.
func LookupProfile(variant domain.Variant) (Profile, bool) {
	p, ok := profiles[variant]
	if !ok {
		return Profile{}, false
	}
	p.Bitrates = append([]float64(nil), p.Bitrates...)
	return p, true
}

// Supports reports whether bitrate (kbps) is accepted by the profile.
func (p Profile) Supports(bitrate float64) bool {
	for _, b := range p.Bitrates {
		if b == bitrate {
			return true
		}
	}
	return false
}

// Format returns the waveform layout the variant consumes.
func (p Profile) Format() audio.Format {
	return audio.Format{SampleRate: p.SampleRate, Channels: p.Channels}
}

// BitrateList renders bitrates as "1.5, 3, 6 kbps".
func (p Profile) BitrateList() string {
	parts := make([]string, 0, len(p.Bitrates))
	for _, b := range p.Bitrates {
		parts = append(parts, strconv.FormatFloat(b, 'f', -1, 64))
	}
	return strings.Join(parts, ", ") + " kbps"
}

// ChannelLabel returns "mono", "stereo" or "N ch".
func (p Profile) ChannelLabel() string {
	switch p.Channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d ch", p.Channels)
	}
}
