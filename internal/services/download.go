package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/stemx/internal/shared"
)

// StemFilename names a downloaded stem after its source file: "<stem>_<name>.wav".
//
// The job id stands in when the source filename is unknown.
func StemFilename(stem Stem, filename, jobID string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if filename == "" || base == "" || base == "." {
		base = jobID
	}
	return fmt.Sprintf("%s_%s.wav", stem, base)
}

// SaveStem downloads a stem into dir and returns the written path.
//
// The body is written to a temporary file first so a failed download never leaves a truncated stem behind.
func SaveStem(ctx context.Context, sep Separator, stem Stem, jobID, filename, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", newError(shared.ErrDownload, 0, "Download failed", fmt.Errorf("failed to create download directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".stemx-*.part")
	if err != nil {
		return "", newError(shared.ErrDownload, 0, "Download failed", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := sep.Download(ctx, stem, jobID, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", newError(shared.ErrDownload, 0, "Download failed", err)
	}

	dest := filepath.Join(dir, StemFilename(stem, filename, jobID))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", newError(shared.ErrDownload, 0, "Download failed", err)
	}

	return dest, nil
}
