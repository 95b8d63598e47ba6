package encode

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/domain"
)

func TestChunkCountIsCeilingDivision(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{total: 720000, size: 240000, want: 3},
		{total: 720001, size: 240000, want: 4},
		{total: 1, size: 240000, want: 1},
		{total: 0, size: 240000, want: 0},
		{total: 10, size: 0, want: 0},
		{total: 1440000, size: math.MaxInt, want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunkCount(tt.total, tt.size), "ChunkCount(%d, %d)", tt.total, tt.size)
	}
}

func TestChunkFramesRejectsDegenerateDurations(t *testing.T) {
	size, err := ChunkFrames(24000, 10)
	require.NoError(t, err)
	assert.Equal(t, 240000, size)

	for _, seconds := range []float64{0, -1, 0.00001} {
		_, err := ChunkFrames(24000, seconds)
		assert.Equal(t, domain.KindConfiguration, domain.KindOf(err), "seconds=%v", seconds)
	}
}

func TestChunkFramesSaturatesHugeDurations(t *testing.T) {
	for _, seconds := range []float64{192153584101141.12, 1e300} {
		size, err := ChunkFrames(48000, seconds)
		require.NoError(t, err, "seconds=%v", seconds)
		assert.Equal(t, maxChunkFrames, size)
	}
}

func TestSchedulerHugeChunkIsOneWindow(t *testing.T) {
	engine := newFakeEngine(domain.Variant48kHz)
	wave := tone(audio.Format{SampleRate: 48000, Channels: 2}, 48000*30)

	chunks, err := NewScheduler(zerolog.Nop()).Run(wave, binding(t, domain.Variant48kHz, engine), 6, true, 192153584101141.12, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{48000 * 30}, engine.calls())
	require.Len(t, chunks, 1)
	assert.Equal(t, 48000*30, chunks[0].Frames)
}

func TestSchedulerWindowsInOrder(t *testing.T) {
	engine := newFakeEngine(domain.Variant24kHz)
	wave := tone(audio.Format{SampleRate: 24000, Channels: 1}, 24000*25)

	var ordinals, processed []int
	chunks, err := NewScheduler(zerolog.Nop()).Run(wave, binding(t, domain.Variant24kHz, engine), 3, true, 10,
		func(ordinal, done, total int) {
			ordinals = append(ordinals, ordinal)
			processed = append(processed, done)
			assert.Equal(t, 24000*25, total)
		})
	require.NoError(t, err)

	assert.Equal(t, []int{240000, 240000, 120000}, engine.calls())
	assert.Equal(t, []int{0, 1, 2}, ordinals)
	assert.Equal(t, []int{240000, 480000, 600000}, processed)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, 3.0, chunk.Bitrate)
		assert.Equal(t, byte(i), chunk.Payload[0])
	}
	assert.Equal(t, 1, engine.maxInFlight)
}

func TestSchedulerWithoutChunkingEncodesOnce(t *testing.T) {
	engine := newFakeEngine(domain.Variant48kHz)
	wave := tone(audio.Format{SampleRate: 48000, Channels: 2}, 48000*95)

	callbacks := 0
	chunks, err := NewScheduler(zerolog.Nop()).Run(wave, binding(t, domain.Variant48kHz, engine), 6, false, 0,
		func(ordinal, done, total int) {
			callbacks++
			assert.Equal(t, total, done)
		})
	require.NoError(t, err)
	assert.Equal(t, []int{48000 * 95}, engine.calls())
	assert.Equal(t, 1, callbacks)
	assert.Len(t, chunks, 1)
}

func TestSchedulerAbortsOnEngineError(t *testing.T) {
	engine := newFakeEngine(domain.Variant24kHz)
	engine.failAt = 1
	wave := tone(audio.Format{SampleRate: 24000, Channels: 1}, 24000*30)

	callbacks := 0
	chunks, err := NewScheduler(zerolog.Nop()).Run(wave, binding(t, domain.Variant24kHz, engine), 3, true, 10,
		func(int, int, int) { callbacks++ })

	require.Error(t, err)
	assert.Equal(t, domain.KindCodec, domain.KindOf(err))
	assert.Contains(t, err.Error(), "chunk 2 of 3")
	assert.Nil(t, chunks)
	assert.Len(t, engine.calls(), 2, "no chunks after the failing one")
	assert.Equal(t, 1, callbacks)
}

func TestSchedulerRejectsUnavailableEngine(t *testing.T) {
	wave := tone(audio.Format{SampleRate: 24000, Channels: 1}, 10)
	_, err := NewScheduler(zerolog.Nop()).Run(wave, binding(t, domain.Variant24kHz, nil), 3, false, 0, nil)
	assert.Equal(t, domain.KindCodec, domain.KindOf(err))
}

func TestComputeProgressUnits(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		rate      int
		value     float64
		unit      domain.TimeUnit
	}{
		{name: "seconds", processed: 30 * 24000, rate: 24000, value: 30, unit: domain.TimeUnitSeconds},
		{name: "exactly one minute stays seconds", processed: 60 * 24000, rate: 24000, value: 60, unit: domain.TimeUnitSeconds},
		{name: "minutes", processed: 90 * 24000, rate: 24000, value: 1.5, unit: domain.TimeUnitMinutes},
		{name: "hours", processed: 7200 * 1000, rate: 1000, value: 2, unit: domain.TimeUnitHours},
		{name: "days", processed: 172800 * 1000, rate: 1000, value: 2, unit: domain.TimeUnitDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := ComputeProgress(tt.processed, tt.processed*2, tt.rate)
			assert.InDelta(t, 0.5, snapshot.Fraction, 1e-9)
			assert.InDelta(t, tt.value, snapshot.DisplayValue, 1e-9)
			assert.Equal(t, tt.unit, snapshot.Unit)
		})
	}
}

func TestComputeProgressBounds(t *testing.T) {
	assert.Equal(t, 1.0, ComputeProgress(0, 0, 24000).Fraction)
	assert.Equal(t, 1.0, ComputeProgress(20, 10, 24000).Fraction)
	assert.Equal(t, "50.00% (1.50 min.)", ComputeProgress(90*24000, 180*24000, 24000).String())
}

func TestFormatAudioDuration(t *testing.T) {
	assert.Equal(t, "30.00 sec.", FormatAudioDuration(30))
	assert.Equal(t, "1.50 min.", FormatAudioDuration(90))
	assert.Equal(t, "2.00 hr.", FormatAudioDuration(7200))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatElapsed(-time.Second))
	assert.Equal(t, "00:01:05", FormatElapsed(65*time.Second))
	assert.Equal(t, "26:00:01", FormatElapsed(26*time.Hour+time.Second))
}
