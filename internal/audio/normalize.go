package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"encodec-converter/internal/domain"
)

const stageConverting = "converting"

// Request carries the normalization input and its callbacks.
type Request struct {
	SourcePath string
	Target     Format
	OnLog      func(log CommandLog)
}

// Normalizer loads any source into a waveform matching the codec format.
type Normalizer struct {
	transcoder Transcoder
	logger     zerolog.Logger
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	readWAV    func(path string) (Waveform, WAVInfo, error)
}

// NewNormalizer constructs a normalizer that falls back to transcoder for non-WAV input.
func NewNormalizer(transcoder Transcoder, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		transcoder: transcoder,
		logger:     logger,
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		readWAV:    ReadWAVFile,
	}
}

// RequiresTranscode reports whether path must pass through the external transcoder.
func RequiresTranscode(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return false
	default:
		return true
	}
}

// TranscoderAvailable reports whether the external transcoder can be invoked.
func (n *Normalizer) TranscoderAvailable() bool {
	return n.transcoder != nil && n.transcoder.Available() == nil
}

// Preflight fails when path needs a transcoder that is not installed.
func (n *Normalizer) Preflight(path string) error {
	if !RequiresTranscode(path) {
		return nil
	}
	if n.transcoder == nil {
		return domain.DependencyMissingError("ffmpeg is not installed; install it to convert non-WAV audio", ErrTranscoderMissing)
	}
	if err := n.transcoder.Available(); err != nil {
		return domain.DependencyMissingError("ffmpeg is not installed; install it to convert non-WAV audio", err)
	}
	return nil
}

// Normalize returns the source audio resampled and remixed to req.Target.
// Intermediate files live in a private temp dir removed before returning.
func (n *Normalizer) Normalize(ctx context.Context, req Request) (Waveform, error) {
	if err := n.Preflight(req.SourcePath); err != nil {
		return Waveform{}, err
	}

	loadPath := req.SourcePath
	if RequiresTranscode(req.SourcePath) {
		tempDir, err := n.mkdirTemp("", "encodec-normalize-*")
		if err != nil {
			return Waveform{}, domain.IOError(stageConverting, "failed to create temporary workspace", err)
		}
		defer func() {
			if err := n.removeAll(tempDir); err != nil {
				n.logger.Warn().Err(err).Str("dir", tempDir).Msg("remove normalization workspace")
			}
		}()

		loadPath = filepath.Join(tempDir, "intermediate.wav")
		n.logger.Debug().Str("source", req.SourcePath).Int("sample_rate", req.Target.SampleRate).Msg("transcoding source to WAV")
		log, err := n.transcoder.Transcode(ctx, req.SourcePath, loadPath, req.Target.SampleRate)
		if req.OnLog != nil {
			req.OnLog(log)
		}
		if err != nil {
			return Waveform{}, domain.IOError(stageConverting, "ffmpeg audio conversion failed", err)
		}
	}

	wave, info, err := n.readWAV(loadPath)
	if err != nil {
		return Waveform{}, domain.IOError(stageConverting, fmt.Sprintf("cannot read audio: %s", req.SourcePath), err)
	}
	if wave.Frames() == 0 {
		return Waveform{}, domain.IOError(stageConverting, fmt.Sprintf("no audio samples found in %s", req.SourcePath), nil)
	}
	if err := ctx.Err(); err != nil {
		return Waveform{}, domain.IOError(stageConverting, "normalization interrupted", err)
	}

	n.logger.Debug().
		Str("source_format", info.Format.String()).
		Str("target_format", req.Target.String()).
		Int("frames", wave.Frames()).
		Msg("loaded source audio")

	converted, err := Convert(wave, req.Target)
	if err != nil {
		return Waveform{}, domain.IOError(stageConverting, "source channel layout is not supported", err)
	}
	return converted, nil
}
