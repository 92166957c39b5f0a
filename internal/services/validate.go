package services

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/stemx/internal/shared"
)

// ValidateFile applies the client-side upload constraints: a single regular file with an accepted extension no
// larger than the configured limit.
//
// The extension is checked before the size, matching the order a file picker would filter in.
func ValidateFile(path string, limits shared.LimitsConfig) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, newError(shared.ErrValidation, 0, "Could not read file", err)
	}
	if info.IsDir() {
		return nil, newError(shared.ErrValidation, 0, "Please choose a single audio file", shared.ErrInvalidInput)
	}

	if !AcceptedExtension(path, limits.Extensions) {
		return nil, newError(shared.ErrValidation, 0, "Invalid file format. Accepted: "+acceptedList(limits.Extensions), shared.ErrUnsupportedFormat)
	}

	if info.Size() > limits.MaxUploadBytes() {
		return nil, newError(shared.ErrValidation, 0, fmt.Sprintf("File too large. Maximum %dMB", limits.MaxUploadMB), shared.ErrFileTooLarge)
	}

	return info, nil
}

// AcceptedExtension reports whether path ends in one of exts, case-insensitively.
func AcceptedExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && slices.ContainsFunc(exts, func(e string) bool { return strings.EqualFold(e, ext) })
}

func acceptedList(exts []string) string {
	names := make([]string, len(exts))
	for i, e := range exts {
		names[i] = strings.TrimPrefix(strings.ToLower(e), ".")
	}
	return strings.Join(names, ", ")
}
