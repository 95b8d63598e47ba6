package encode

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"encodec-converter/internal/codec"
	"encodec-converter/internal/domain"
)

const stageSaving = "saving"

// Writer persists an encoded sequence and repacks it at maximum compression.
type Writer struct {
	logger     zerolog.Logger
	mkdirTemp  func(dir, pattern string) (string, error)
	createTemp func(dir, pattern string) (*os.File, error)
	removeAll  func(path string) error
	rename     func(oldpath, newpath string) error
}

// NewWriter constructs the production writer with OS dependencies.
func NewWriter(logger zerolog.Logger) *Writer {
	return &Writer{
		logger:     logger,
		mkdirTemp:  os.MkdirTemp,
		createTemp: os.CreateTemp,
		removeAll:  os.RemoveAll,
		rename:     os.Rename,
	}
}

// Write saves chunks through the engine's container format, then recompresses
// the artifact in place.
func (w *Writer) Write(destination string, engine codec.Engine, chunks []codec.EncodedChunk) error {
	if engine == nil {
		return domain.CodecError(stageSaving, "no engine to save with", codec.ErrEngineUnavailable)
	}
	if err := engine.Save(chunks, destination); err != nil {
		return domain.IOError(stageSaving, "failed to write encoded artifact", err)
	}
	w.logger.Debug().Str("path", destination).Int("chunks", len(chunks)).Msg("artifact saved")

	if err := w.Recompress(destination); err != nil {
		return domain.IOError(stageSaving, "failed to recompress artifact", err)
	}
	return nil
}

// Recompress extracts path into an isolated directory and rebuilds it with
// Deflate at best compression. The original is replaced only after the new
// archive is complete.
func (w *Writer) Recompress(path string) error {
	workDir, err := w.mkdirTemp("", "encodec-recompress-*")
	if err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	defer func() {
		if rmErr := w.removeAll(workDir); rmErr != nil {
			w.logger.Warn().Err(rmErr).Str("dir", workDir).Msg("failed to remove extraction dir")
		}
	}()

	if err := ExtractArchive(path, workDir); err != nil {
		return err
	}

	tmp, err := w.createTemp(filepath.Dir(path), ".encodec-recompress-*")
	if err != nil {
		return fmt.Errorf("create rebuild file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = w.removeAll(tmpPath)
		}
	}()

	if err := tmp.Chmod(codec.ArtifactMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("set rebuild file mode: %w", err)
	}

	writeErr := writeArchive(workDir, tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("close rebuild file: %w", closeErr)
	}
	if err := w.rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	committed = true
	return nil
}

// ExtractArchive unpacks every file entry of src below dir.
func ExtractArchive(src, dir string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file == nil {
			continue
		}
		cleanName := filepath.Clean(filepath.FromSlash(file.Name))
		if cleanName == "." || cleanName == "" {
			continue
		}
		targetPath := filepath.Join(dir, cleanName)
		if !isWithinBaseDir(dir, targetPath) {
			return fmt.Errorf("archive contains invalid path: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(file, targetPath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		_ = src.Close()
		return err
	}

	_, copyErr := io.Copy(dst, src)
	srcCloseErr := src.Close()
	dstCloseErr := dst.Close()
	if copyErr != nil {
		return fmt.Errorf("extract %s: %w", file.Name, copyErr)
	}
	if srcCloseErr != nil {
		return srcCloseErr
	}
	return dstCloseErr
}

// BuildArchive packs every regular file below dir into a new archive at dst.
func BuildArchive(dir, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	writeErr := writeArchive(dir, out)
	closeErr := out.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func writeArchive(dir string, out io.Writer) error {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan extracted entries: %w", err)
	}
	sort.Strings(names)

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	for _, name := range names {
		if err := addFile(zw, filepath.Join(dir, filepath.FromSlash(name)), name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	return nil
}

func isWithinBaseDir(baseDir string, targetPath string) bool {
	baseClean := filepath.Clean(baseDir)
	targetClean := filepath.Clean(targetPath)
	relative, err := filepath.Rel(baseClean, targetClean)
	if err != nil {
		return false
	}
	return relative == "." || (!strings.HasPrefix(relative, "..") && relative != "")
}
