package encode

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
)

const stageEncoding = "encoding"

// maxChunkFrames bounds a window so oversized durations stay representable.
const maxChunkFrames = math.MaxInt32

// ChunkFunc is called after each window is encoded.
type ChunkFunc func(ordinal, processedFrames, totalFrames int)

// Scheduler drives an engine over a waveform one window at a time.
type Scheduler struct {
	logger zerolog.Logger
}

// NewScheduler creates a scheduler that logs per-chunk progress at debug.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// ChunkFrames converts a window duration into sample frames. Durations past
// maxChunkFrames saturate; callers clamp the result to the waveform length.
func ChunkFrames(sampleRate int, seconds float64) (int, error) {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, domain.ConfigurationError(fmt.Sprintf("chunk length must be greater than 0, got %v", seconds), nil)
	}
	frames := float64(sampleRate) * seconds
	if frames >= maxChunkFrames {
		return maxChunkFrames, nil
	}
	size := int(frames)
	if size < 1 {
		return 0, domain.ConfigurationError(fmt.Sprintf("chunk length %vs is shorter than one sample at %d Hz", seconds, sampleRate), nil)
	}
	return size, nil
}

// ChunkCount is the number of windows of size frames needed to cover total.
func ChunkCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return 1 + (total-1)/size
}

// Run encodes wave in ascending windows. With chunking disabled the whole
// waveform is one window. The first engine error aborts the run and no
// partial sequence is returned.
func (s *Scheduler) Run(
	wave audio.Waveform,
	binding codec.Binding,
	bitrate float64,
	chunking bool,
	seconds float64,
	onChunk ChunkFunc,
) ([]codec.EncodedChunk, error) {
	if !binding.Ready() {
		return nil, domain.CodecError(stageEncoding, "engine is unavailable", binding.InitErr)
	}

	total := wave.Frames()
	size := total
	if chunking {
		var err error
		if size, err = ChunkFrames(binding.Profile.SampleRate, seconds); err != nil {
			return nil, err
		}
	}
	if size > total {
		size = total
	}
	if size < 1 {
		size = 1
	}

	count := ChunkCount(total, size)
	s.logger.Debug().
		Int("frames", total).
		Int("chunk_frames", size).
		Int("chunks", count).
		Msg("scheduling chunks")

	chunks := make([]codec.EncodedChunk, 0, count)
	for ordinal := 0; ordinal < count; ordinal++ {
		start := ordinal * size
		window := wave.Slice(start, start+size)
		payload, err := binding.Engine.Encode(window, bitrate)
		if err != nil {
			return nil, domain.CodecError(stageEncoding, fmt.Sprintf("chunk %d of %d failed", ordinal+1, count), err)
		}
		chunks = append(chunks, codec.EncodedChunk{
			Index:   ordinal,
			Frames:  window.Frames(),
			Bitrate: bitrate,
			Payload: payload,
		})

		processed := start + window.Frames()
		s.logger.Debug().Int("chunk", ordinal).Int("processed", processed).Msg("chunk encoded")
		if onChunk != nil {
			onChunk(ordinal, processed, total)
		}
	}
	return chunks, nil
}
