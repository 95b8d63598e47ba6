package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
)

const (
	defaultBitrate      = 6.0
	defaultChunkSeconds = 10.0
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		OutputDir:       filepath.Join(homeDir, "Documents", "EnCodec"),
		Variant:         domain.Variant48kHz,
		Bitrate:         defaultBitrate,
		ChunkingEnabled: true,
		ChunkSeconds:    defaultChunkSeconds,
		Device:          "auto",
		FFmpegPath:      "ffmpeg",
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Normalize trims user input, expands ~ and fills empty fields with defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	} else if expanded, err := expandPath(settings.OutputDir); err == nil {
		settings.OutputDir = expanded
	}
	if variant, ok := domain.ParseVariant(string(settings.Variant)); ok {
		settings.Variant = variant
	} else if strings.TrimSpace(string(settings.Variant)) == "" {
		settings.Variant = defaults.Variant
	}
	if settings.Bitrate == 0 {
		settings.Bitrate = defaults.Bitrate
	}
	if settings.ChunkSeconds == 0 {
		settings.ChunkSeconds = defaults.ChunkSeconds
	}
	settings.Device = strings.ToLower(strings.TrimSpace(settings.Device))
	if settings.Device == "" {
		settings.Device = defaults.Device
	}
	settings.FFmpegPath = strings.TrimSpace(settings.FFmpegPath)
	if settings.FFmpegPath == "" {
		settings.FFmpegPath = defaults.FFmpegPath
	}
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	settings.LogFormat = strings.ToLower(strings.TrimSpace(settings.LogFormat))
	if settings.LogFormat == "" {
		settings.LogFormat = defaults.LogFormat
	}
	settings.MetricsAddr = strings.TrimSpace(settings.MetricsAddr)
	return settings
}

// Validate reports the first invalid field as a configuration error.
func Validate(settings domain.Settings) error {
	profile, ok := codec.LookupProfile(settings.Variant)
	if !ok {
		return domain.ConfigurationError(fmt.Sprintf("unknown model variant %q", settings.Variant), nil)
	}
	if !profile.Supports(settings.Bitrate) {
		return domain.ConfigurationError(fmt.Sprintf("%g kbps with %s model is not supported", settings.Bitrate, settings.Variant), nil)
	}
	if settings.ChunkSeconds <= 0 {
		return domain.ConfigurationError("chunk length must be greater than 0", nil)
	}
	switch settings.Device {
	case "auto", "cpu", "cuda":
	default:
		return domain.ConfigurationError(fmt.Sprintf("unknown device %q (use auto, cpu or cuda)", settings.Device), nil)
	}
	switch settings.LogFormat {
	case "console", "json":
	default:
		return domain.ConfigurationError(fmt.Sprintf("unknown log format %q", settings.LogFormat), nil)
	}
	return nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve user home: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
