package codec

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// ContainerFormat identifies the artifact layout written by WriteContainer.
	ContainerFormat = "encodec-converter/opus-v1"
	manifestName    = "manifest.json"
	chunkDir        = "chunks/"

	// ArtifactMode is the permission of every saved artifact.
	ArtifactMode os.FileMode = 0o644
)

// ErrInvalidContainer is returned for archives missing the manifest or chunks.
var ErrInvalidContainer = errors.New("invalid artifact container")

// Manifest describes the chunks stored in an artifact.
type Manifest struct {
	Format      string  `json:"format"`
	Encoder     string  `json:"encoder"`
	Variant     string  `json:"variant"`
	SampleRate  int     `json:"sampleRate"`
	Channels    int     `json:"channels"`
	Bitrate     float64 `json:"bitrate"`
	Device      string  `json:"device"`
	FrameMillis int     `json:"frameMillis"`
	ChunkFrames []int   `json:"chunkFrames"`
}

// TotalFrames sums audio frames across chunks.
func (m Manifest) TotalFrames() int {
	total := 0
	for _, n := range m.ChunkFrames {
		total += n
	}
	return total
}

// DurationSeconds returns the encoded audio length.
func (m Manifest) DurationSeconds() float64 {
	if m.SampleRate <= 0 {
		return 0
	}
	return float64(m.TotalFrames()) / float64(m.SampleRate)
}

func chunkEntryName(index int) string {
	return fmt.Sprintf("%s%06d.bin", chunkDir, index)
}

// WriteContainer stores the manifest and chunk payloads uncompressed. The
// archive is built beside path and renamed into place.
func WriteContainer(path string, manifest Manifest, chunks []EncodedChunk) (err error) {
	manifest.Format = ContainerFormat
	manifest.ChunkFrames = make([]int, len(chunks))
	for i, chunk := range chunks {
		if chunk.Index != i {
			return fmt.Errorf("chunk %d out of order (index %d)", i, chunk.Index)
		}
		manifest.ChunkFrames[i] = chunk.Frames
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".encodec-save-*")
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	if err = tmp.Chmod(ArtifactMode); err != nil {
		return fmt.Errorf("set artifact mode: %w", err)
	}

	zw := zip.NewWriter(tmp)
	if err = writeStored(zw, manifestName, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}); err != nil {
		return err
	}
	for _, chunk := range chunks {
		payload := chunk.Payload
		if err = writeStored(zw, chunkEntryName(chunk.Index), func(w io.Writer) error {
			_, werr := w.Write(payload)
			return werr
		}); err != nil {
			return err
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize artifact: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("move artifact: %w", err)
	}
	return nil
}

func writeStored(zw *zip.Writer, name string, write func(io.Writer) error) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if err := write(w); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadContainer loads the manifest and chunk payloads in index order.
func ReadContainer(path string) (Manifest, [][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}
	defer zr.Close()

	var manifest Manifest
	found := false
	payloads := map[string][]byte{}
	for _, f := range zr.File {
		switch {
		case f.Name == manifestName:
			if err := readJSONEntry(f, &manifest); err != nil {
				return Manifest{}, nil, err
			}
			found = true
		case strings.HasPrefix(f.Name, chunkDir) && !f.FileInfo().IsDir():
			data, err := readEntry(f)
			if err != nil {
				return Manifest{}, nil, err
			}
			payloads[f.Name] = data
		}
	}
	if !found {
		return Manifest{}, nil, fmt.Errorf("%w: missing %s", ErrInvalidContainer, manifestName)
	}
	if manifest.Format != ContainerFormat {
		return Manifest{}, nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidContainer, manifest.Format)
	}

	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) != len(manifest.ChunkFrames) {
		return Manifest{}, nil, fmt.Errorf("%w: %d chunks, manifest lists %d", ErrInvalidContainer, len(names), len(manifest.ChunkFrames))
	}
	chunks := make([][]byte, len(names))
	for i := range chunks {
		data, ok := payloads[chunkEntryName(i)]
		if !ok {
			return Manifest{}, nil, fmt.Errorf("%w: missing chunk %d", ErrInvalidContainer, i)
		}
		chunks[i] = data
	}
	return manifest, chunks, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func readJSONEntry(f *zip.File, v any) error {
	data, err := readEntry(f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidContainer, f.Name, err)
	}
	return nil
}
