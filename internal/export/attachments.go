// Package export writes message attachments out of an open mailbox, either
// one at a time or as a zip archive.
package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wesm/mboxbrowser/internal/fileutil"
	"github.com/wesm/mboxbrowser/internal/session"
	"github.com/wesm/mboxbrowser/internal/textutil"
)

// Source is the part of a mailbox session export reads from.
type Source interface {
	GetEmailBody(seq int) (*session.EmailBody, error)
	GetAttachment(seq, idx int) ([]byte, error)
}

// ExportStats contains structured results of an attachment export operation.
type ExportStats struct {
	Count      int
	Size       int64
	Errors     []string
	ZipPath    string
	WriteError bool // true if a write error occurred and the zip was removed
}

// WriteFile writes one attachment to path with owner-only permissions. A
// partially written file is removed.
func WriteFile(path string, data []byte) error {
	dst, err := fileutil.CreateExport(path, 0600)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	_, writeErr := dst.Write(data)
	closeErr := dst.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Zip exports every attachment of the messages in seqs into one zip file.
// Per-attachment read failures are collected in Errors and skipped; a write
// failure removes the archive.
func Zip(zipFilename string, src Source, seqs []int) ExportStats {
	zipFile, err := fileutil.CreateExport(zipFilename, 0600)
	if err != nil {
		return ExportStats{Errors: []string{fmt.Sprintf("failed to create zip file: %v", err)}}
	}

	zipWriter := zip.NewWriter(zipFile)

	var stats ExportStats
	var writeError bool

	usedNames := make(map[string]int)
	for _, seq := range seqs {
		body, err := src.GetEmailBody(seq)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("message %d: %v", seq, err))
			continue
		}
		for _, att := range body.Attachments {
			n, err := addAttachmentToZip(zipWriter, src, seq, att, usedNames)
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("message %d: %s: %v", seq, att.Filename, err))
				var zwe *zipWriteError
				if errors.As(err, &zwe) {
					writeError = true
				}
				continue
			}
			stats.Count++
			stats.Size += n
		}
		if writeError {
			break
		}
	}

	if err := zipWriter.Close(); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("zip finalization error: %v", err))
		writeError = true
	}
	if err := zipFile.Close(); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file close error: %v", err))
		writeError = true
	}

	if stats.Count == 0 || writeError {
		os.Remove(zipFilename)
		stats.WriteError = writeError
		return stats
	}

	if abs, err := filepath.Abs(zipFilename); err == nil {
		stats.ZipPath = abs
	} else {
		stats.ZipPath = zipFilename
	}
	return stats
}

// FormatExportResult formats ExportStats into a human-readable string for display.
func FormatExportResult(stats ExportStats) string {
	// Write error is fatal - zip was removed regardless of count
	if stats.WriteError {
		msg := "Export failed due to write errors. Zip file removed."
		if len(stats.Errors) > 0 {
			msg += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
		}
		return msg
	}

	if stats.Count == 0 {
		msg := "No attachments exported."
		if len(stats.Errors) > 0 {
			msg += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
		}
		return msg
	}

	result := fmt.Sprintf("Exported %d attachment(s) (%s)\n\nSaved to:\n%s",
		stats.Count, textutil.FormatBytes(stats.Size), stats.ZipPath)
	if len(stats.Errors) > 0 {
		result += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
	}
	return result
}

type zipWriteError struct {
	err error
}

func (e *zipWriteError) Error() string { return e.err.Error() }
func (e *zipWriteError) Unwrap() error { return e.err }

func addAttachmentToZip(zw *zip.Writer, src Source, seq int, att session.AttachmentInfo, usedNames map[string]int) (int64, error) {
	data, err := src.GetAttachment(seq, att.PartIndex)
	if err != nil {
		return 0, err
	}

	fallback := fmt.Sprintf("message-%d-part-%d", seq, att.PartIndex)
	w, err := zw.Create(resolveUniqueFilename(att.Filename, fallback, usedNames))
	if err != nil {
		return 0, &zipWriteError{fmt.Errorf("zip write error: %w", err)}
	}
	n, err := w.Write(data)
	if err != nil {
		return 0, &zipWriteError{fmt.Errorf("zip write error: %w", err)}
	}
	return int64(n), nil
}

// resolveUniqueFilename sanitizes original and appends _2, _3, ... to names
// already used in this archive. fallback names attachments without a
// usable filename.
func resolveUniqueFilename(original, fallback string, usedNames map[string]int) string {
	filename := SanitizeFilename(filepath.Base(original))
	if filename == "" || filename == "." || filename == ".." {
		filename = fallback
	}

	baseKey := filename
	if count, exists := usedNames[baseKey]; exists {
		ext := filepath.Ext(filename)
		base := filename[:len(filename)-len(ext)]
		filename = fmt.Sprintf("%s_%d%s", base, count+1, ext)
		usedNames[baseKey] = count + 1
	} else {
		usedNames[baseKey] = 1
	}

	return filename
}

// SanitizeFilename removes or replaces characters that are invalid in filenames.
func SanitizeFilename(s string) string {
	var result []rune
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r', '\t':
			result = append(result, '_')
		default:
			result = append(result, r)
		}
	}
	return string(result)
}
