package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
)

// Item IDs used by the desktop fix actions.
const (
	ItemFFmpeg    = "tool_ffmpeg"
	ItemOutputDir = "output_dir"
	ItemDevice    = "device"
)

// EngineItemID names the check for one codec variant.
func EngineItemID(variant domain.Variant) string {
	return "engine_" + string(variant)
}

// Checker validates external tools, codec engines and the output folder.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks. registry may be nil when engines are not built yet.
func (c *Checker) Run(settings domain.Settings, registry *codec.Registry) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTranscoder(settings.FFmpegPath),
		c.checkOutputDir(settings.OutputDir),
	}

	device := ""
	if registry != nil {
		for _, status := range registry.Status() {
			items = append(items, checkEngine(status))
		}
		device = registry.Device().Label()
		items = append(items, domain.DiagnosticItem{
			ID:      ItemDevice,
			Name:    "Execution device",
			Status:  domain.DiagnosticStatusPass,
			Message: "Running on " + device,
		})
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Device:      device,
		Items:       items,
	}
}

// checkTranscoder looks for ffmpeg. A missing transcoder only blocks
// non-WAV sources, so it is a warning.
func (c *Checker) checkTranscoder(configured string) domain.DiagnosticItem {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = "ffmpeg"
	}
	item := domain.DiagnosticItem{ID: ItemFFmpeg, Name: "ffmpeg"}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Tool not found in PATH: %s", name)
		item.Hint = "Install ffmpeg to encode MP3, FLAC, M4A and other non-WAV files."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where encoded files can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for .ecdc output."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

func checkEngine(status codec.EngineStatus) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:      EngineItemID(status.Variant),
		Name:    fmt.Sprintf("%s codec engine", status.Variant),
		Status:  domain.DiagnosticStatusPass,
		Message: status.Detail,
	}
	if !status.Ready {
		item.Status = domain.DiagnosticStatusFail
		item.Hint = "Jobs using this model will fail until the engine can be initialized."
	}
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}
