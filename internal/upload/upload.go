// Package upload submits staff files to the backend and interprets the
// backend's answer.
//
// Two forms exist: the teachers import, which only cares about the HTTP
// status, and the curriculum import, which reports an imported-row count or
// a payload-level error. Both check the selected file locally before any
// request is made.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kadrsp/importdesk/internal/poller"
)

// Backend paths.
const (
	TeachersImportPath = "/import/teachers"
	CurriculumPath     = "/api/upload-curriculum"
	FileField          = "file"
	SheetsField        = "sheets"
)

// DefaultSheets are the workbook sheets the curriculum import reads.
var DefaultSheets = []string{"ПланСвод", "План"}

// curriculumExt is compared case-insensitively.
const curriculumExt = ".xlsx"

var (
	// ErrNoFile is returned when no file was selected.
	ErrNoFile = errors.New("no file selected")

	// ErrUnsupportedFormat is returned for a curriculum file that is not .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format: .xlsx required")
)

// File is a client-selected file. A zero File means nothing was selected.
type File struct {
	Name    string
	Content io.Reader
}

// Selected reports whether a file was chosen.
func (f File) Selected() bool {
	return f.Name != "" && f.Content != nil
}

// Sender posts a multipart form. [*poller.Client] implements it.
type Sender interface {
	Upload(ctx context.Context, url string, headers map[string]string, form poller.Form, timeout time.Duration) poller.Response
}

// Config holds backend coordinates shared by both forms.
type Config struct {
	BaseURL string
	Headers map[string]string
	Timeout time.Duration

	// Sheets is sent with the curriculum upload. Empty means [DefaultSheets].
	Sheets []string

	// VerifySheets opens the workbook locally and rejects it when a sheet
	// from Sheets is missing.
	VerifySheets bool
}

// Handler performs the two uploads. It holds no per-upload state.
type Handler struct {
	cfg    Config
	sender Sender
	logger *slog.Logger
}

// NewHandler creates a [Handler].
func NewHandler(sender Sender, cfg Config, logger *slog.Logger) *Handler {
	if len(cfg.Sheets) == 0 {
		cfg.Sheets = DefaultSheets
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Handler{cfg: cfg, sender: sender, logger: logger}
}

// Sheets returns the sheet list sent with curriculum uploads.
func (h *Handler) Sheets() []string {
	return append([]string(nil), h.cfg.Sheets...)
}

// ValidateTeachersFile checks a teachers-import selection.
func ValidateTeachersFile(f File) error {
	if !f.Selected() {
		return ErrNoFile
	}
	return nil
}

// ValidateCurriculumFile checks a curriculum selection: a file must be
// chosen and its name must end in .xlsx, in any letter case.
func ValidateCurriculumFile(f File) error {
	if !f.Selected() {
		return ErrNoFile
	}
	if !strings.HasSuffix(strings.ToLower(f.Name), curriculumExt) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.Name)
	}
	return nil
}

// Teachers submits a teachers import. Only the HTTP status is inspected;
// the backend processes the file in the background.
func (h *Handler) Teachers(ctx context.Context, f File) error {
	if err := ValidateTeachersFile(f); err != nil {
		return err
	}

	resp := h.sender.Upload(ctx, h.cfg.BaseURL+TeachersImportPath, h.cfg.Headers, poller.Form{
		FileField: FileField,
		FileName:  f.Name,
		File:      f.Content,
	}, h.cfg.Timeout)

	if err := poller.CheckStatus(resp); err != nil {
		h.logger.Warn("teachers upload failed",
			"file", f.Name,
			"request_id", resp.RequestID,
			"status_code", resp.StatusCode,
			"error", err.Error(),
		)
		return err
	}

	h.logger.Info("teachers upload accepted",
		"file", f.Name,
		"request_id", resp.RequestID,
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
	)
	return nil
}

// curriculumReply is the JSON answer of the curriculum endpoint.
type curriculumReply struct {
	Error    string `json:"error"`
	Imported int    `json:"imported"`
}

// Curriculum submits a curriculum workbook and returns the number of
// imported records.
//
// Failures are, in order of checking: selection errors, a missing sheet
// (when VerifySheets is set), *[poller.NetworkError], *[poller.HTTPError],
// *[poller.ParseError] and *[poller.BusinessError].
func (h *Handler) Curriculum(ctx context.Context, f File) (int, error) {
	if err := ValidateCurriculumFile(f); err != nil {
		return 0, err
	}

	content := f.Content
	if h.cfg.VerifySheets {
		data, err := io.ReadAll(f.Content)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if err := CheckSheets(bytes.NewReader(data), h.cfg.Sheets); err != nil {
			return 0, err
		}
		content = bytes.NewReader(data)
	}

	resp := h.sender.Upload(ctx, h.cfg.BaseURL+CurriculumPath, h.cfg.Headers, poller.Form{
		FileField: FileField,
		FileName:  f.Name,
		File:      content,
		Fields:    [][2]string{{SheetsField, strings.Join(h.cfg.Sheets, ",")}},
	}, h.cfg.Timeout)

	imported, err := interpretCurriculum(resp)
	if err != nil {
		h.logger.Warn("curriculum upload failed",
			"file", f.Name,
			"request_id", resp.RequestID,
			"status_code", resp.StatusCode,
			"error", err.Error(),
		)
		return 0, err
	}

	h.logger.Info("curriculum upload imported",
		"file", f.Name,
		"request_id", resp.RequestID,
		"imported", imported,
		"latency_ms", resp.Latency.Milliseconds(),
	)
	return imported, nil
}

func interpretCurriculum(resp poller.Response) (int, error) {
	if err := poller.CheckStatus(resp); err != nil {
		return 0, err
	}

	var reply curriculumReply
	if err := poller.DecodeJSON(resp.Body, &reply); err != nil {
		return 0, err
	}
	if reply.Error != "" {
		return 0, &poller.BusinessError{Message: reply.Error}
	}
	return reply.Imported, nil
}
