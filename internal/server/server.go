package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kadrsp/importdesk/internal/render"
	"github.com/kadrsp/importdesk/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Импорт кадровых данных"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"

	// columnsPlaceholder is replaced with the teachers table header row.
	columnsPlaceholder = "{{.Columns}}"

	// maxUploadMemory is how much of a multipart form is kept in memory;
	// the rest spills to temporary files.
	maxUploadMemory = 32 << 20

	// formFileField is the multipart field carrying the selected file.
	formFileField = "file"
)

// Actions are the operations behind the page's forms and buttons.
//
// Implementations report failures through the board banner; the returned
// error only decides the ok flag of the JSON reply.
type Actions interface {
	// UploadTeachers submits a teachers import. An empty name means no
	// file was selected.
	UploadTeachers(ctx context.Context, name string, content io.Reader) error

	// UploadCurriculum submits a curriculum workbook. An empty name means
	// no file was selected.
	UploadCurriculum(ctx context.Context, name string, content io.Reader) error

	// Sort toggles the table's name order.
	Sort()

	// Poll waits for imported teachers to appear.
	Poll(ctx context.Context)
}

// actionReply is the JSON body returned by the form endpoints.
type actionReply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Server handles HTTP requests for the import page and its API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded page HTML
//   - GET /api/board: Returns the current board as JSON
//   - GET /api/sse: Server-Sent Events stream of board snapshots
//   - POST /upload/teachers, POST /upload/curriculum: Form submissions
//   - POST /sort, POST /poll: Table controls
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	actions    Actions
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the board the page displays
//   - actions: Operations behind the form endpoints (may be nil to serve read-only)
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing page assets (may be nil)
//   - title: Page title (defaults to "Импорт кадровых данных" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, actions Actions, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		store:   st,
		actions: actions,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Handler returns the request multiplexer with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/board", s.handleBoard)
	mux.HandleFunc("/api/sse", s.handleSSE)

	if s.actions != nil {
		mux.HandleFunc("/upload/teachers", s.handleUpload(s.actions.UploadTeachers))
		mux.HandleFunc("/upload/curriculum", s.handleUpload(s.actions.UploadCurriculum))
		mux.HandleFunc("/sort", s.handleSort)
		mux.HandleFunc("/poll", s.handlePoll)
	}

	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the import page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	head, err := render.TableHeadString()
	if err != nil {
		s.logger.Error("failed to render table header", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	rendered = strings.ReplaceAll(rendered, columnsPlaceholder, head)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleBoard returns the current board as JSON.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.store.Get()); err != nil {
		s.logger.Error("failed to encode board response", "error", err)
	}
}

// handleUpload adapts an upload action to a multipart form endpoint.
// A request without a file is passed through so the action can report it.
func (s *Server) handleUpload(action func(context.Context, string, io.Reader) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		if r.MultipartForm != nil {
			defer func() {
				if err := r.MultipartForm.RemoveAll(); err != nil {
					s.logger.Warn("failed to remove multipart temp files", "error", err)
				}
			}()
		}

		var (
			name    string
			content io.Reader
		)
		file, header, err := r.FormFile(formFileField)
		switch {
		case err == nil:
			defer closeFile(file)
			name, content = header.Filename, file
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		default:
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}

		s.reply(w, action(r.Context(), name, content))
	}
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.actions.Sort()
	s.reply(w, nil)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.actions.Poll(r.Context())
	s.reply(w, nil)
}

// reply writes the action outcome; the message is the banner now on the board.
func (s *Server) reply(w http.ResponseWriter, err error) {
	out := actionReply{OK: err == nil}
	if b := s.store.Get().Banner; b != nil {
		out.Message = b.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("failed to encode action response", "error", err)
	}
}

// handleSSE streams board snapshots via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// initial snapshot
	if data, err := json.Marshal(s.store.Get()); err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case board, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(board)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

func closeFile(f multipart.File) {
	_ = f.Close()
}
