package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrTranscoderMissing is returned when ffmpeg cannot be found.
var ErrTranscoderMissing = errors.New("transcoder not available")

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Transcoder converts containers the normalizer cannot read directly.
type Transcoder interface {
	Available() error
	Transcode(ctx context.Context, sourcePath, outPath string, sampleRate int) (CommandLog, error)
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpeg transcodes through the ffmpeg CLI.
type FFmpeg struct {
	path     string
	runner   commandRunner
	lookPath func(string) (string, error)
}

// NewFFmpeg builds a transcoder for the given binary ("ffmpeg" when empty).
func NewFFmpeg(path string) *FFmpeg {
	return NewFFmpegForTests(path, &execRunner{}, exec.LookPath)
}

// NewFFmpegForTests builds a transcoder with injectable process hooks.
func NewFFmpegForTests(path string, runner commandRunner, lookPath func(string) (string, error)) *FFmpeg {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, runner: runner, lookPath: lookPath}
}

// Path returns the configured binary.
func (f *FFmpeg) Path() string {
	return f.path
}

// Available reports whether the binary resolves on PATH.
func (f *FFmpeg) Available() error {
	if _, err := f.lookPath(f.path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTranscoderMissing, f.path, err)
	}
	return nil
}

// Transcode writes a 16-bit PCM WAV of sourcePath at sampleRate to outPath.
func (f *FFmpeg) Transcode(ctx context.Context, sourcePath, outPath string, sampleRate int) (CommandLog, error) {
	args := buildFFmpegArgs(sourcePath, outPath, sampleRate)
	result, err := f.runner.Run(ctx, f.path, args...)
	log := CommandLog{
		Command:  f.path,
		Args:     args,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
	if err != nil {
		return log, fmt.Errorf("ffmpeg exited with code %d: %w", result.ExitCode, err)
	}
	return log, nil
}

// buildFFmpegArgs resamples to the codec rate; channels are remixed in process.
func buildFFmpegArgs(inputPath, outPath string, sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	}
}
