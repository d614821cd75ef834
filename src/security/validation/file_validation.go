package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/username/fxportal/src/logger"
)

var ErrInvalidFile = errors.New("invalid file")

var (
	xlsxMagic = []byte("PK\x03\x04")
	xlsMagic  = []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1")
	pdfMagic  = []byte("%PDF-")
)

// SpreadsheetExtensions are the accepted bulk upload extensions.
var SpreadsheetExtensions = map[string][]byte{
	".xlsx": xlsxMagic,
	".xls":  xlsMagic,
}

// AllowedImageTypes are the detected content types accepted for avatars.
var AllowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// sniff reads the head of file and rewinds it so the upload can be streamed afterwards.
func sniff(file io.ReadSeeker) ([]byte, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: file is nil", ErrInvalidFile)
	}
	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file for content type checking: %w", err)
	}
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return nil, fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	return buffer[:n], nil
}

func checkSize(size, maxSize int64) error {
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("%w: file exceeds the %d bytes limit", ErrInvalidFile, maxSize)
	}
	return nil
}

// ValidateSpreadsheet accepts .xls and .xlsx files whose content matches the extension.
func ValidateSpreadsheet(filename string, file io.ReadSeeker, size, maxSize int64) error {
	if err := checkSize(size, maxSize); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	magic, ok := SpreadsheetExtensions[ext]
	if !ok {
		logger.L.Warn("Disallowed spreadsheet extension", "filename", filename)
		return fmt.Errorf("%w: only .xls and .xlsx files are accepted", ErrInvalidFile)
	}
	head, err := sniff(file)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(head, magic) {
		logger.L.Warn("Spreadsheet content does not match its extension", "filename", filename, "detected", http.DetectContentType(head))
		return fmt.Errorf("%w: %s content does not match a %s file", ErrInvalidFile, filename, ext)
	}
	return nil
}

// ValidateImage accepts the avatar image types and returns the detected type.
func ValidateImage(file io.ReadSeeker, size, maxSize int64) (string, error) {
	if err := checkSize(size, maxSize); err != nil {
		return "", err
	}
	head, err := sniff(file)
	if err != nil {
		return "", err
	}
	detected := strings.ToLower(strings.Split(http.DetectContentType(head), ";")[0])
	if !AllowedImageTypes[detected] {
		logger.L.Warn("Disallowed image content type", "detectedContentType", detected)
		return detected, fmt.Errorf("%w: detected content type '%s' is not an accepted image", ErrInvalidFile, detected)
	}
	return detected, nil
}

// ValidatePDF accepts signed invoice confirmations.
func ValidatePDF(filename string, file io.ReadSeeker, size, maxSize int64) error {
	if err := checkSize(size, maxSize); err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: only .pdf files are accepted", ErrInvalidFile)
	}
	head, err := sniff(file)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(head, pdfMagic) {
		return fmt.Errorf("%w: %s is not a PDF document", ErrInvalidFile, filename)
	}
	return nil
}
