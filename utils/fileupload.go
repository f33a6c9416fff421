package utils

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MaxFileSize is 25MB in bytes
	MaxFileSize = 25 * 1024 * 1024
)

// AllowedFileExtensions lists the drawing, model and document formats accepted for orders
var AllowedFileExtensions = map[string]bool{
	".pdf":  true,
	".dxf":  true,
	".dwg":  true,
	".step": true,
	".stp":  true,
	".iges": true,
	".igs":  true,
	".stl":  true,
	".obj":  true,
	".3mf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".zip":  true,
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateOrderFile validates the uploaded file format and size
func ValidateOrderFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size == 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: "Uploaded file is empty",
		}
	}

	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !AllowedFileExtensions[ext] {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", strings.Join(allowedExtensionList(), ", ")),
		}
	}

	return nil
}

func allowedExtensionList() []string {
	exts := make([]string, 0, len(AllowedFileExtensions))
	for ext := range AllowedFileExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// SafeStorageKey reports whether key is a relative path that stays inside the upload root
func SafeStorageKey(key string) bool {
	if key == "" || strings.Contains(key, "\\") || filepath.IsAbs(key) {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "" {
			return false
		}
	}
	return true
}

// SaveFile writes content under uploadDir at the relative storage key
func SaveFile(uploadDir, key string, content []byte) (err error) {
	if !SafeStorageKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}

	fullPath := filepath.Join(uploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := dst.Write(content); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// LocalFileURL returns the API path that serves a locally stored upload
func LocalFileURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("/api/v1/uploads/%s", key)
}
