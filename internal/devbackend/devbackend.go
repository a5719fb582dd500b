// Package devbackend is a stand-in for the staff records backend, used for
// local runs of the import desk and in tests.
//
// Teachers become visible a fixed delay after an import is accepted, so
// the page's polling can be watched end to end. Curriculum uploads are
// opened with excelize and their data rows counted.
package devbackend

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadrsp/importdesk/internal/roster"
	"github.com/kadrsp/importdesk/internal/upload"
)

const maxUploadMemory = 32 << 20

// Backend serves the three endpoints the import desk talks to.
type Backend struct {
	readyAfter time.Duration
	seed       []roster.Teacher
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex
	importAt  time.Time
	imported  bool
	uploadIDs []string
}

// Option configures a [Backend].
type Option func(*Backend)

// WithReadyAfter sets how long after an accepted import the teachers list
// stays empty. Defaults to 5s.
func WithReadyAfter(d time.Duration) Option {
	return func(b *Backend) { b.readyAfter = d }
}

// WithTeachers replaces the records that an import makes visible.
func WithTeachers(teachers []roster.Teacher) Option {
	return func(b *Backend) { b.seed = roster.Clone(teachers) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// New creates a Backend with no imported teachers.
func New(opts ...Option) *Backend {
	b := &Backend{
		readyAfter: 5 * time.Second,
		seed:       SampleTeachers(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handler returns the request multiplexer.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/import/teachers", b.handleImportTeachers)
	mux.HandleFunc("/api/teachers", b.handleTeachers)
	mux.HandleFunc("/api/upload-curriculum", b.handleCurriculum)
	return mux
}

// UploadIDs returns the IDs assigned to accepted uploads, oldest first.
func (b *Backend) UploadIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploadIDs...)
}

func (b *Backend) handleImportTeachers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, _, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.importAt = b.now()
	b.imported = true
	b.uploadIDs = append(b.uploadIDs, id)
	b.mu.Unlock()

	b.logger.Info("teachers import accepted",
		"upload_id", id,
		"file", name,
		"request_id", r.Header.Get("X-Request-ID"),
		"ready_after", b.readyAfter.String(),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "upload_id": id}, b.logger)
}

func (b *Backend) handleTeachers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b.mu.Lock()
	ready := b.imported && !b.now().Before(b.importAt.Add(b.readyAfter))
	b.mu.Unlock()

	teachers := []roster.Teacher{}
	if ready {
		teachers = roster.Clone(b.seed)
	}
	writeJSON(w, http.StatusOK, teachers, b.logger)
}

func (b *Backend) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, data, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sheets := upload.DefaultSheets
	if raw := r.FormValue(upload.SheetsField); raw != "" {
		sheets = strings.Split(raw, ",")
	}

	counts, err := upload.CountRows(bytes.NewReader(data), sheets)
	if err != nil {
		b.logger.Warn("curriculum rejected", "file", name, "error", err.Error())
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()}, b.logger)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.uploadIDs = append(b.uploadIDs, id)
	b.mu.Unlock()

	b.logger.Info("curriculum imported", "upload_id", id, "file", name, "rows", total)
	writeJSON(w, http.StatusOK, map[string]any{"imported": total, "upload_id": id}, b.logger)
}

// readUpload returns the name and content of the multipart "file" field.
func readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return "", nil, errors.New("expected multipart form")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, header, err := r.FormFile(upload.FileField)
	if err != nil {
		return "", nil, errors.New("file field is required")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
