package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"encodec-converter/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Variant != domain.Variant48kHz || cfg.Bitrate != 6 {
		t.Fatalf("variant/bitrate = %s/%v, want 48kHz/6", cfg.Variant, cfg.Bitrate)
	}
	if !cfg.ChunkingEnabled || cfg.ChunkSeconds != 10 {
		t.Fatalf("chunking = %v/%v, want true/10", cfg.ChunkingEnabled, cfg.ChunkSeconds)
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

// TestLockPathSharesAppDir checks settings and the encode lock live together
// under the home directory.
func TestLockPathSharesAppDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	lock, err := LockPath()
	if err != nil {
		t.Fatalf("LockPath() error = %v", err)
	}
	settings, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() error = %v", err)
	}
	if want := filepath.Join(home, AppDirName, "encode.lock"); lock != want {
		t.Fatalf("lock = %q, want %q", lock, want)
	}
	if filepath.Dir(settings) != filepath.Dir(lock) {
		t.Fatalf("settings %q and lock %q in different dirs", settings, lock)
	}
}

// TestTOMLStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestTOMLStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.toml")
	store := NewTOMLStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestTOMLStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestTOMLStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.toml")
	store := NewTOMLStore(path)
	want := domain.Settings{
		OutputDir:       "/out",
		Variant:         domain.Variant24kHz,
		Bitrate:         1.5,
		ChunkingEnabled: false,
		ChunkSeconds:    2.5,
		Device:          "cpu",
		FFmpegPath:      "/usr/bin/ffmpeg",
		LogLevel:        "debug",
		LogFormat:       "json",
		MetricsAddr:     "127.0.0.1:9464",
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "chunk_seconds = 2.5") {
		t.Fatalf("expected snake_case TOML keys, got:\n%s", data)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestTOMLStoreLoadPartialKeepsDefaults checks sparse files.
func TestTOMLStoreLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("variant = \"24\"\nbitrate = 3.0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewTOMLStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Variant != domain.Variant24kHz || got.Bitrate != 3 {
		t.Fatalf("variant/bitrate = %s/%v", got.Variant, got.Bitrate)
	}
	if !got.ChunkingEnabled || got.ChunkSeconds != 10 || got.Device != "auto" {
		t.Fatalf("defaults not kept: %+v", got)
	}
}

// TestTOMLStoreLoadInvalid checks parse error handling.
func TestTOMLStoreLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("variant = ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewTOMLStore(path).Load(); err == nil {
		t.Fatal("expected toml parse error")
	}
}

// TestTOMLStoreSaveRejectsInvalid checks validation before write.
func TestTOMLStoreSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	cfg := DefaultSettings()
	cfg.Variant = domain.Variant48kHz
	cfg.Bitrate = 1.5

	err := NewTOMLStore(path).Save(cfg)
	if domain.KindOf(err) != domain.KindConfiguration {
		t.Fatalf("Save() error = %v, want configuration error", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("invalid settings must not be written")
	}
}

// TestNormalizeFillsAndTrims checks input cleanup.
func TestNormalizeFillsAndTrims(t *testing.T) {
	got := Normalize(domain.Settings{
		OutputDir: "  ",
		Variant:   "48KHZ",
		Device:    " CUDA ",
		LogFormat: "JSON",
	})
	defaults := DefaultSettings()
	if got.OutputDir != defaults.OutputDir {
		t.Fatalf("output dir = %q", got.OutputDir)
	}
	if got.Variant != domain.Variant48kHz || got.Device != "cuda" || got.LogFormat != "json" {
		t.Fatalf("normalized = %+v", got)
	}
	if got.Bitrate != 6 || got.ChunkSeconds != 10 || got.FFmpegPath != "ffmpeg" {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

// TestValidateRejectsBadFields checks each constraint.
func TestValidateRejectsBadFields(t *testing.T) {
	tests := map[string]func(*domain.Settings){
		"variant":    func(s *domain.Settings) { s.Variant = "96kHz" },
		"bitrate":    func(s *domain.Settings) { s.Bitrate = 7 },
		"chunk":      func(s *domain.Settings) { s.ChunkSeconds = -1 },
		"device":     func(s *domain.Settings) { s.Device = "tpu" },
		"log format": func(s *domain.Settings) { s.LogFormat = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultSettings()
			mutate(&cfg)
			if domain.KindOf(Validate(cfg)) != domain.KindConfiguration {
				t.Fatalf("expected configuration error for %s", name)
			}
		})
	}
}
