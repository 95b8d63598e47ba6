package bootstrap

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"encodec-converter/internal/audio"
	"encodec-converter/internal/codec"
	"encodec-converter/internal/config"
	"encodec-converter/internal/diagnostics"
	"encodec-converter/internal/domain"
	"encodec-converter/internal/encode"
	"encodec-converter/internal/jobs"
	"encodec-converter/internal/logging"
	"encodec-converter/internal/metrics"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.wav;*.mp3;*.flac;*.ogg;*.m4a;*.aac;*.opus;*.wma;*.aiff;*.mp4;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// encoder isolates the orchestrator behind an interface.
type encoder interface {
	Preflight(spec domain.EncodingJobSpec) (domain.Preflight, error)
	Submit(ctx context.Context, spec domain.EncodingJobSpec) (domain.Job, <-chan encode.Outcome, error)
	Current() domain.Job
	Events(sinceSeq int64) []jobs.Event
}

// App wires configuration, the encoder, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Encoder     encoder
	Registry    *codec.Registry
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	logger      zerolog.Logger
	logCloser   io.Closer
	metrics     *metrics.Server

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewTOMLStore(filepath.Join(appDir(homeDir), "settings.toml"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger, closer, err := logging.New(logging.Config{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	device := codec.ResolveDevice(settings.Device, exec.LookPath)
	registry := codec.NewRegistry(device, codec.OpusFactory, logger)

	lockPath, err := config.LockPath()
	if err != nil {
		return nil, fmt.Errorf("resolve encode lock: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)

	app := &App{
		Settings:  settings,
		Store:     store,
		Registry:  registry,
		assets:    assets,
		checker:   diagnostics.NewChecker(),
		logger:    logger,
		logCloser: closer,
	}
	if settings.MetricsAddr != "" {
		app.metrics = metrics.NewServer(settings.MetricsAddr, promRegistry)
	}

	app.Encoder = encode.New(encode.Options{
		Registry:   registry,
		Normalizer: audio.NewNormalizer(audio.NewFFmpeg(settings.FFmpegPath), logger),
		Guard:      jobs.NewGuard(lockPath),
		Metrics:    recorder,
		Logger:     logger,
		Observer:   app.emit,
	})
	app.Diagnostics = app.checker.Run(settings, registry)

	logger.Info().
		Str("device", device.Label()).
		Str("settings", store.Path()).
		Bool("has_failures", app.Diagnostics.HasFailures).
		Msg("application initialized")

	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "EnCodec Converter",
		Width:       960,
		Height:      680,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and starts the
// metrics endpoint when configured.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	if a.metrics != nil {
		go func() {
			if err := a.metrics.Start(); err != nil {
				a.logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}
}

// Shutdown detaches the runtime context and releases background resources.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetDevice returns the execution device label, e.g. "CPU".
func (a *App) GetDevice() string {
	if a.Registry == nil {
		return codec.DeviceCPU.Label()
	}
	return a.Registry.Device().Label()
}

// GetProfiles returns the codec variants with their bitrates.
func (a *App) GetProfiles() []codec.Profile {
	if a.Registry == nil {
		return nil
	}
	return a.Registry.Profiles()
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Device and ffmpeg path changes apply on next launch.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// PickInputFile opens a native file dialog for audio selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for encoded files.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// CheckDestination reports pre-flight facts for inputPath so the UI can ask
// before overwriting an existing file.
func (a *App) CheckDestination(inputPath string) (domain.Preflight, error) {
	spec, err := a.specFor(inputPath)
	if err != nil {
		return domain.Preflight{}, err
	}
	return a.Encoder.Preflight(spec)
}

// StartEncoding submits a job for inputPath using stored settings. The job
// runs in the background; progress arrives as "job:event" pushes.
func (a *App) StartEncoding(inputPath string) (domain.Job, error) {
	spec, err := a.specFor(inputPath)
	if err != nil {
		return domain.Job{}, err
	}

	job, done, err := a.Encoder.Submit(context.Background(), spec)
	if err != nil {
		return domain.Job{}, err
	}

	go func() {
		outcome := <-done
		event := a.logger.Info()
		if outcome.Err != nil {
			event = a.logger.Warn().Err(outcome.Err)
		}
		event.Str("job_id", outcome.JobID).
			Str("status", string(outcome.Status)).
			Str("elapsed", outcome.ElapsedString()).
			Msg("desktop job finished")
	}()
	return job, nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Encoder.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.Encoder.Events(sinceSeq)
}

func (a *App) specFor(inputPath string) (domain.EncodingJobSpec, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.EncodingJobSpec{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return domain.SpecFromSettings(strings.TrimSpace(inputPath), settings), nil
}

// emit pushes orchestrator events to the frontend.
func (a *App) emit(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", event)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func appDir(homeDir string) string {
	return filepath.Join(homeDir, config.AppDirName)
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
