package main

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/codec"
	"encodec-converter/internal/config"
	"encodec-converter/internal/domain"
	"encodec-converter/internal/encode"
	"encodec-converter/internal/jobs"
	"encodec-converter/internal/logging"
)

// flagKeys maps CLI flag names onto settings keys.
var flagKeys = map[string]string{
	"output-dir":    "output_dir",
	"device":        "device",
	"ffmpeg":        "ffmpeg_path",
	"log-level":     "log_level",
	"log-format":    "log_format",
	"variant":       "variant",
	"bitrate":       "bitrate",
	"chunking":      "chunking_enabled",
	"chunk-seconds": "chunk_seconds",
}

// commandContext resolves settings once per invocation: stored TOML, then
// ENCODEC_* environment variables, then flags.
type commandContext struct {
	factory    codec.EngineFactory
	configPath string
	v          *viper.Viper

	once        sync.Once
	settings    domain.Settings
	settingsErr error

	logger    zerolog.Logger
	logCloser io.Closer
	registry  *codec.Registry
}

func newCommandContext(factory codec.EngineFactory) *commandContext {
	v := viper.New()
	v.SetEnvPrefix("ENCODEC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &commandContext{factory: factory, v: v, logger: zerolog.Nop()}
}

// bindFlags attaches every known flag on cmd to its settings key.
func (c *commandContext) bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := c.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *commandContext) ensureSettings() (domain.Settings, error) {
	c.once.Do(func() {
		path := strings.TrimSpace(c.configPath)
		if path == "" {
			defaultPath, err := config.DefaultPath()
			if err != nil {
				c.settingsErr = err
				return
			}
			path = defaultPath
		}

		stored, err := config.NewTOMLStore(path).Load()
		if err != nil {
			c.settingsErr = err
			return
		}
		c.setDefaults(stored)

		settings := config.Normalize(domain.Settings{
			OutputDir:       c.v.GetString("output_dir"),
			Variant:         domain.Variant(c.v.GetString("variant")),
			Bitrate:         c.v.GetFloat64("bitrate"),
			ChunkingEnabled: c.v.GetBool("chunking_enabled"),
			ChunkSeconds:    c.v.GetFloat64("chunk_seconds"),
			Device:          c.v.GetString("device"),
			FFmpegPath:      c.v.GetString("ffmpeg_path"),
			LogLevel:        c.v.GetString("log_level"),
			LogFormat:       c.v.GetString("log_format"),
			MetricsAddr:     c.v.GetString("metrics_addr"),
		})
		if err := config.Validate(settings); err != nil {
			c.settingsErr = err
			return
		}
		c.settings = settings

		logger, closer, err := logging.New(logging.Config{
			Level:  settings.LogLevel,
			Format: settings.LogFormat,
		})
		if err != nil {
			c.settingsErr = err
			return
		}
		c.logger = logger
		c.logCloser = closer
	})
	return c.settings, c.settingsErr
}

func (c *commandContext) setDefaults(stored domain.Settings) {
	c.v.SetDefault("output_dir", stored.OutputDir)
	c.v.SetDefault("variant", string(stored.Variant))
	c.v.SetDefault("bitrate", stored.Bitrate)
	c.v.SetDefault("chunking_enabled", stored.ChunkingEnabled)
	c.v.SetDefault("chunk_seconds", stored.ChunkSeconds)
	c.v.SetDefault("device", stored.Device)
	c.v.SetDefault("ffmpeg_path", stored.FFmpegPath)
	c.v.SetDefault("log_level", stored.LogLevel)
	c.v.SetDefault("log_format", stored.LogFormat)
	c.v.SetDefault("metrics_addr", stored.MetricsAddr)
}

// codecRegistry binds engines on first use with the resolved device.
func (c *commandContext) codecRegistry() (*codec.Registry, error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	if c.registry == nil {
		device := codec.ResolveDevice(settings.Device, exec.LookPath)
		c.registry = codec.NewRegistry(device, c.factory, c.logger)
	}
	return c.registry, nil
}

func (c *commandContext) newOrchestrator(observer func(jobs.Event)) (*encode.Orchestrator, error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	registry, err := c.codecRegistry()
	if err != nil {
		return nil, err
	}
	lockPath, err := config.LockPath()
	if err != nil {
		return nil, err
	}

	return encode.New(encode.Options{
		Registry:   registry,
		Normalizer: audio.NewNormalizer(audio.NewFFmpeg(settings.FFmpegPath), c.logger),
		Guard:      jobs.NewGuard(lockPath),
		Logger:     c.logger,
		Observer:   observer,
	}), nil
}

func (c *commandContext) close() {
	if c.logCloser != nil {
		_ = c.logCloser.Close()
	}
}
