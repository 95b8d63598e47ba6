package encode

import (
	"fmt"
	"time"

	"encodec-converter/internal/domain"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400
)

// ComputeProgress converts a frame position into a snapshot. An empty
// waveform counts as complete.
func ComputeProgress(processed, total, sampleRate int) domain.ProgressSnapshot {
	snapshot := domain.ProgressSnapshot{Fraction: 1}
	if total > 0 {
		if processed > total {
			processed = total
		}
		snapshot.Fraction = float64(processed) / float64(total)
	}
	if sampleRate > 0 && processed > 0 {
		snapshot.ElapsedAudioSeconds = float64(processed) / float64(sampleRate)
	}
	snapshot.DisplayValue, snapshot.Unit = scaleDuration(snapshot.ElapsedAudioSeconds)
	return snapshot
}

func scaleDuration(seconds float64) (float64, domain.TimeUnit) {
	switch {
	case seconds > secondsPerDay:
		return seconds / secondsPerDay, domain.TimeUnitDays
	case seconds > secondsPerHour:
		return seconds / secondsPerHour, domain.TimeUnitHours
	case seconds > secondsPerMinute:
		return seconds / secondsPerMinute, domain.TimeUnitMinutes
	default:
		return seconds, domain.TimeUnitSeconds
	}
}

// FormatElapsed renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatAudioDuration renders seconds with the progress unit scaling, e.g. "1.50 min.".
func FormatAudioDuration(seconds float64) string {
	value, unit := scaleDuration(seconds)
	return fmt.Sprintf("%.2f %s", value, unit)
}
