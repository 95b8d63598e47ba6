package domain

import (
	"path/filepath"
	"strings"
)

// JobStatus tracks each pipeline stage for a single encoding job.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusConverting JobStatus = "converting"
	JobStatusEncoding   JobStatus = "encoding"
	JobStatusSaving     JobStatus = "saving"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Variant names one codec engine configuration.
type Variant string

const (
	Variant24kHz Variant = "24kHz"
	Variant48kHz Variant = "48kHz"
)

// Variants lists every supported variant in display order.
func Variants() []Variant {
	return []Variant{Variant24kHz, Variant48kHz}
}

// ParseVariant accepts "24kHz", "24khz" or "24" style input.
func ParseVariant(raw string) (Variant, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimSuffix(value, "khz")
	switch value {
	case "24":
		return Variant24kHz, true
	case "48":
		return Variant48kHz, true
	default:
		return "", false
	}
}

// ArtifactExtension is the fixed suffix of encoded output files.
const ArtifactExtension = ".ecdc"

// Settings contains user-selectable runtime configuration.
type Settings struct {
	OutputDir       string  `json:"outputDir" toml:"output_dir"`
	Variant         Variant `json:"variant" toml:"variant"`
	Bitrate         float64 `json:"bitrate" toml:"bitrate"`
	ChunkingEnabled bool    `json:"chunkingEnabled" toml:"chunking_enabled"`
	ChunkSeconds    float64 `json:"chunkSeconds" toml:"chunk_seconds"`
	Device          string  `json:"device" toml:"device"`
	FFmpegPath      string  `json:"ffmpegPath" toml:"ffmpeg_path"`
	LogLevel        string  `json:"logLevel" toml:"log_level"`
	LogFormat       string  `json:"logFormat" toml:"log_format"`
	MetricsAddr     string  `json:"metricsAddr,omitempty" toml:"metrics_addr"`
}

// EncodingJobSpec is the immutable input of one encoding job.
type EncodingJobSpec struct {
	SourcePath      string  `json:"sourcePath"`
	DestinationPath string  `json:"destinationPath"`
	Variant         Variant `json:"variant"`
	Bitrate         float64 `json:"bitrate"`
	ChunkingEnabled bool    `json:"chunkingEnabled"`
	ChunkSeconds    float64 `json:"chunkSeconds"`
}

// SpecFromSettings builds a job spec for sourcePath using stored settings.
func SpecFromSettings(sourcePath string, settings Settings) EncodingJobSpec {
	return EncodingJobSpec{
		SourcePath:      sourcePath,
		DestinationPath: DestinationFor(sourcePath, settings.OutputDir),
		Variant:         settings.Variant,
		Bitrate:         settings.Bitrate,
		ChunkingEnabled: settings.ChunkingEnabled,
		ChunkSeconds:    settings.ChunkSeconds,
	}
}

// DestinationFor places <source basename>.ecdc inside outputDir.
func DestinationFor(sourcePath, outputDir string) string {
	base := filepath.Base(strings.TrimSpace(sourcePath))
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "encoded"
	}
	return filepath.Join(outputDir, name+ArtifactExtension)
}

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Error    *Failure  `json:"error,omitempty"`
}

// Failure is the user-facing form of a classified job error.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Preflight collects environment facts about a job before it starts.
type Preflight struct {
	DestinationExists   bool   `json:"destinationExists"`
	TranscodeRequired   bool   `json:"transcodeRequired"`
	TranscoderAvailable bool   `json:"transcoderAvailable"`
	Device              string `json:"device"`
}
