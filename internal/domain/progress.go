package domain

import "fmt"

// TimeUnit is the display unit of an elapsed-audio estimate.
type TimeUnit string

const (
	TimeUnitSeconds TimeUnit = "sec."
	TimeUnitMinutes TimeUnit = "min."
	TimeUnitHours   TimeUnit = "hr."
	TimeUnitDays    TimeUnit = "day"
)

// ProgressSnapshot describes how far the encoder has advanced through the audio.
type ProgressSnapshot struct {
	Fraction            float64  `json:"fraction"`
	ElapsedAudioSeconds float64  `json:"elapsedAudioSeconds"`
	DisplayValue        float64  `json:"displayValue"`
	Unit                TimeUnit `json:"unit"`
	Chunk               int      `json:"chunk"`
	Chunks              int      `json:"chunks"`
}

// Percent returns the completion as 0..100.
func (p ProgressSnapshot) Percent() float64 {
	return p.Fraction * 100
}

// String renders the status line shown while encoding.
func (p ProgressSnapshot) String() string {
	return fmt.Sprintf("%.2f%% (%.2f %s)", p.Percent(), p.DisplayValue, p.Unit)
}
