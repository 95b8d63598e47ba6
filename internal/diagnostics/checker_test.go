package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
)

// stubEngine satisfies codec.Engine for registry construction.
type stubEngine struct{ codec.Engine }

func testRegistry(broken domain.Variant) *codec.Registry {
	return codec.NewRegistry(codec.DeviceCPU, func(profile codec.Profile, device codec.Device) (codec.Engine, error) {
		if profile.Variant == broken {
			return nil, errors.New("libopus missing")
		}
		return stubEngine{}, nil
	}, zerolog.Nop())
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "output")
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{OutputDir: outputDir}, testRegistry(""))

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if report.Device != "CPU" {
		t.Fatalf("device = %q, want CPU", report.Device)
	}
	assertStatusByID(t, report, ItemFFmpeg, domain.DiagnosticStatusPass)
	assertStatusByID(t, report, EngineItemID(domain.Variant24kHz), domain.DiagnosticStatusPass)
	assertStatusByID(t, report, EngineItemID(domain.Variant48kHz), domain.DiagnosticStatusPass)
	assertStatusByID(t, report, ItemDevice, domain.DiagnosticStatusPass)

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("write check left files behind: %v", entries)
	}
}

// TestCheckerRunMissingToolAndOutputDir validates failure reporting.
func TestCheckerRunMissingToolAndOutputDir(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{OutputDir: ""}, nil)

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	assertStatusByID(t, report, ItemFFmpeg, domain.DiagnosticStatusWarn)
	assertStatusByID(t, report, ItemOutputDir, domain.DiagnosticStatusFail)
	if _, ok := report.Item(ItemDevice); ok {
		t.Fatal("device item requires a registry")
	}
}

// TestCheckerMissingFFmpegAloneIsNotFailure keeps WAV-only setups usable.
func TestCheckerMissingFFmpegAloneIsNotFailure(t *testing.T) {
	var looked string
	checker := NewCheckerForTests(
		func(name string) (string, error) {
			looked = name
			return "", errors.New("not found")
		},
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{OutputDir: t.TempDir(), FFmpegPath: "/opt/ffmpeg/bin/ffmpeg"}, testRegistry(""))
	if report.HasFailures {
		t.Fatalf("missing ffmpeg should only warn: %+v", report.Items)
	}
	if looked != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("looked up %q, want configured path", looked)
	}
}

// TestCheckerReportsBrokenEngine validates per-variant engine status.
func TestCheckerReportsBrokenEngine(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{OutputDir: t.TempDir()}, testRegistry(domain.Variant48kHz))

	if !report.HasFailures {
		t.Fatal("expected failure for broken engine")
	}
	assertStatusByID(t, report, EngineItemID(domain.Variant24kHz), domain.DiagnosticStatusPass)
	assertStatusByID(t, report, EngineItemID(domain.Variant48kHz), domain.DiagnosticStatusFail)
}

// TestCheckerOutputDirNotWritable validates write probe failures.
func TestCheckerOutputDirNotWritable(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		func(string, os.FileMode) error { return nil },
		func(string, string) (*os.File, error) { return nil, os.ErrPermission },
		os.Remove,
	)

	report := checker.Run(domain.Settings{OutputDir: "/read-only"}, nil)
	assertStatusByID(t, report, ItemOutputDir, domain.DiagnosticStatusFail)
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	item, ok := report.Item(id)
	if !ok {
		t.Fatalf("diagnostic item not found: %s", id)
	}
	if item.Status != want {
		t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
	}
}
