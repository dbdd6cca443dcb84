// Package artifacts writes completed-download archives to disk.
package artifacts

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"

	"github.com/labverse/sentinel-core/pkg/downloads"
	"github.com/labverse/sentinel-core/pkg/logger"
)

const manifestName = "manifest.json"

// Manifest is the metadata stored inside every archive
type Manifest struct {
	Method      string    `json:"method"`
	Label       string    `json:"label"`
	RunID       string    `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// FileSink emits one tar.gz archive per completed download into a directory
type FileSink struct {
	dir    string
	logger *logger.Logger
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{
		dir:    dir,
		logger: logger.New("artifact-sink"),
	}
}

// Dir returns the output directory
func (s *FileSink) Dir() string {
	return s.dir
}

// FileName builds backup_<label-slug>_<YYYYMMDD_HHMMSS>.tar.gz
func FileName(a downloads.Artifact) string {
	return fmt.Sprintf("backup_%s_%s.tar.gz", slug.Make(a.Method.Info().Label), a.CompletedAt.Format("20060102_150405"))
}

// EmitArtifact writes the archive and returns its file name
func (s *FileSink) EmitArtifact(ctx context.Context, a downloads.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	name := FileName(a)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) && len(a.RunID) >= 8 {
		// Two completions of one method within the same second
		name = fmt.Sprintf("%s_%s.tar.gz", name[:len(name)-len(".tar.gz")], a.RunID[:8])
		f, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}

	if err := writeArchive(f, a); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}

	s.logger.Info().
		Str("method", a.Method.String()).
		Str("run_id", a.RunID).
		Str("artifact", name).
		Str("action", "artifact_written").
		Msg("Archive created")

	return name, nil
}

func writeArchive(f *os.File, a downloads.Artifact) error {
	manifest, err := json.MarshalIndent(Manifest{
		Method:      a.Method.String(),
		Label:       a.Method.Info().Label,
		RunID:       a.RunID,
		CompletedAt: a.CompletedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:    manifestName,
		Mode:    0o644,
		Size:    int64(len(manifest)),
		ModTime: a.CompletedAt,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write archive header: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return nil
}

// ReadManifest extracts the manifest from an archive on disk
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("manifest not found: %w", err)
		}
		if hdr.Name != manifestName {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		return &m, nil
	}
}
