package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/kadrsp/importdesk/dashboard"
	"github.com/kadrsp/importdesk/internal/roster"
	"github.com/kadrsp/importdesk/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeActions records calls and reports through the store like the desk does.
type fakeActions struct {
	st *store.MemoryStore

	mu        sync.Mutex
	uploads   []string
	contents  []string
	sorts     int
	polls     int
	uploadErr error
}

func (f *fakeActions) upload(form string, name string, content io.Reader) error {
	f.mu.Lock()
	f.uploads = append(f.uploads, form+":"+name)
	if content != nil {
		b, _ := io.ReadAll(content)
		f.contents = append(f.contents, string(b))
	}
	err := f.uploadErr
	f.mu.Unlock()

	msg := "ok"
	if name == "" {
		msg = "Выберите файл!"
	} else if err != nil {
		msg = "Ошибка: " + err.Error()
	}
	f.st.Update(store.Board{Banner: &store.Banner{Kind: "info", Message: msg}})

	if name == "" {
		return errors.New("no file")
	}
	return err
}

func (f *fakeActions) UploadTeachers(_ context.Context, name string, content io.Reader) error {
	return f.upload("teachers", name, content)
}

func (f *fakeActions) UploadCurriculum(_ context.Context, name string, content io.Reader) error {
	return f.upload("curriculum", name, content)
}

func (f *fakeActions) Sort() {
	f.mu.Lock()
	f.sorts++
	f.mu.Unlock()
}

func (f *fakeActions) Poll(context.Context) {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
}

func newTestServer(assets fs.FS, title string) (*Server, *store.MemoryStore, *fakeActions) {
	st := store.NewMemoryStore()
	actions := &fakeActions{st: st}
	return NewServer(st, actions, 0, assets, title, testLogger()), st, actions
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if name != "" {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	} else if err := w.WriteField("other", "value"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) actionReply {
	t.Helper()
	var reply actionReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to parse reply: %v, body: %s", err, rec.Body.String())
	}
	return reply
}

// --- Board and form endpoints ---

func TestHandleBoard(t *testing.T) {
	srv, st, _ := newTestServer(nil, "")
	st.Update(store.Board{
		Teachers:  []roster.Teacher{{ID: 1, FullName: "Иванов И.И."}},
		TableHTML: "<tr><td>Иванов И.И.</td></tr>",
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/board", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var board store.Board
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("failed to parse board: %v", err)
	}
	if board.Version != 1 || len(board.Teachers) != 1 || board.Teachers[0].FullName != "Иванов И.И." {
		t.Errorf("board = %+v", board)
	}
}

func TestHandleBoard_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(nil, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/board", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleUpload_PassesFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/upload/teachers", want: "teachers:staff.xlsx"},
		{path: "/upload/curriculum", want: "curriculum:staff.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			srv, _, actions := newTestServer(nil, "")
			body, contentType := multipartBody(t, formFileField, "staff.xlsx", "payload")

			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			reply := decodeReply(t, rec)
			if !reply.OK || reply.Message != "ok" {
				t.Errorf("reply = %+v, want ok", reply)
			}
			if len(actions.uploads) != 1 || actions.uploads[0] != tt.want {
				t.Errorf("uploads = %v, want [%s]", actions.uploads, tt.want)
			}
			if len(actions.contents) != 1 || actions.contents[0] != "payload" {
				t.Errorf("contents = %v, want [payload]", actions.contents)
			}
		})
	}
}

func TestHandleUpload_MissingFileReachesAction(t *testing.T) {
	srv, _, actions := newTestServer(nil, "")
	body, contentType := multipartBody(t, formFileField, "", "")

	req := httptest.NewRequest(http.MethodPost, "/upload/teachers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	reply := decodeReply(t, rec)
	if reply.OK {
		t.Error("reply.OK = true, want false")
	}
	if reply.Message != "Выберите файл!" {
		t.Errorf("reply.Message = %q", reply.Message)
	}
	if len(actions.uploads) != 1 || actions.uploads[0] != "teachers:" {
		t.Errorf("uploads = %v, want [teachers:]", actions.uploads)
	}
}

func TestHandleUpload_NotMultipart(t *testing.T) {
	srv, _, actions := newTestServer(nil, "")

	req := httptest.NewRequest(http.MethodPost, "/upload/curriculum", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reply := decodeReply(t, rec); reply.OK {
		t.Error("reply.OK = true, want false")
	}
	if len(actions.uploads) != 1 || actions.uploads[0] != "curriculum:" {
		t.Errorf("uploads = %v, want [curriculum:]", actions.uploads)
	}
}

func TestHandleUpload_ActionError(t *testing.T) {
	srv, _, actions := newTestServer(nil, "")
	actions.uploadErr = errors.New("500: boom")
	body, contentType := multipartBody(t, formFileField, "plan.xlsx", "x")

	req := httptest.NewRequest(http.MethodPost, "/upload/curriculum", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	reply := decodeReply(t, rec)
	if reply.OK {
		t.Error("reply.OK = true, want false")
	}
	if reply.Message != "Ошибка: 500: boom" {
		t.Errorf("reply.Message = %q", reply.Message)
	}
}

func TestHandleUpload_MethodNotAllowed(t *testing.T) {
	srv, _, actions := newTestServer(nil, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload/teachers", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if len(actions.uploads) != 0 {
		t.Errorf("uploads = %v, want none", actions.uploads)
	}
}

func TestHandleSortAndPoll(t *testing.T) {
	srv, _, actions := newTestServer(nil, "")
	h := srv.Handler()

	for _, path := range []string{"/sort", "/sort", "/poll"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if reply := decodeReply(t, rec); !reply.OK {
			t.Errorf("%s reply.OK = false", path)
		}
	}

	if actions.sorts != 2 {
		t.Errorf("sorts = %d, want 2", actions.sorts)
	}
	if actions.polls != 1 {
		t.Errorf("polls = %d, want 1", actions.polls)
	}
}

func TestHandler_ReadOnlyWithoutActions(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sort", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- SSE ---

func TestHandleSSE_InitialSnapshot(t *testing.T) {
	srv, st, _ := newTestServer(nil, "")
	st.Update(store.Board{TableHTML: "<tr><td>Петров</td></tr>"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	boards := parseSSEEvents(rec.Body.String())
	if len(boards) != 1 {
		t.Fatalf("got %d events, want 1: %s", len(boards), rec.Body.String())
	}
	if boards[0].Version != 1 || !strings.Contains(boards[0].TableHTML, "Петров") {
		t.Errorf("initial board = %+v", boards[0])
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	srv, st, _ := newTestServer(nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	st.Update(store.Board{Banner: &store.Banner{Kind: "success", Message: "Данные успешно загружены!"}})

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	boards := parseSSEEvents(rec.Body.String())
	if len(boards) != 2 {
		t.Fatalf("got %d events, want 2", len(boards))
	}
	if boards[1].Banner == nil || boards[1].Banner.Message != "Данные успешно загружены!" {
		t.Errorf("streamed banner = %+v", boards[1].Banner)
	}
}

func TestHandleSSE_ServerShutdown(t *testing.T) {
	srv, _, _ := newTestServer(nil, "")

	// simulate BaseContext by deriving the request from the server context
	serverCtx, serverCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(serverCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	serverCancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after server shutdown")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	srv, _, _ := newTestServer(nil, "")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
			srv.handleSSE(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv, _, _ := newTestServer(nil, "")

	w := &nonFlushWriter{header: make(http.Header)}
	srv.handleSSE(w, httptest.NewRequest(http.MethodGet, "/api/sse", nil))

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	srv, _, _ := newTestServer(nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}
	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

// TestServer_SSEIntegration runs the stream over a real connection, where
// write deadlines are supported.
func TestServer_SSEIntegration(t *testing.T) {
	srv, st, _ := newTestServer(nil, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sse", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		st.Update(store.Board{TableHTML: "<tr><td>Integration</td></tr>"})
	}()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body) // ends with context deadline
	found := false
	for _, board := range parseSSEEvents(string(body)) {
		if strings.Contains(board.TableHTML, "Integration") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("streamed board not found in SSE events: %s", body)
	}
}

func parseSSEEvents(body string) []store.Board {
	var boards []store.Board
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var b store.Board
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &b); err == nil {
			boards = append(boards, b)
		}
	}
	return boards
}

// --- Start ---

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	// port 0 = OS assigns available port
	srv, _, _ := newTestServer(nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Errorf("Start() on available port returned error: %v", err)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	srv := NewServer(store.NewMemoryStore(), nil, port, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, -1, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Dashboard ---

func pageFS(content string) fs.FS {
	return fstest.MapFS{"assets/index.html": &fstest.MapFile{Data: []byte(content)}}
}

func TestHandleDashboard_Title(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "custom", title: "Кафедра информатики", want: "<title>Кафедра информатики</title>"},
		{name: "default", title: "", want: "<title>Импорт кадровых данных</title>"},
		{name: "escaped markup", title: "<script>alert('xss')</script>", want: "&lt;script&gt;"},
		{name: "escaped ampersand", title: "Кадры & планы", want: "Кадры &amp; планы"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(pageFS("<title>{{.Title}}</title>"), tt.title)

			rec := httptest.NewRecorder()
			srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			body := rec.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body = %q, want it to contain %q", body, tt.want)
			}
			if strings.Contains(body, "<script>") {
				t.Error("title should be HTML-escaped to prevent XSS")
			}
		})
	}
}

func TestHandleDashboard_TableHeader(t *testing.T) {
	srv, _, _ := newTestServer(pageFS("<thead>{{.Columns}}</thead>"), "")

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if strings.Contains(body, "{{.Columns}}") {
		t.Error("columns placeholder left in page")
	}
	if got := strings.Count(body, "</th>"); got != 9 {
		t.Errorf("header cells = %d, want 9", got)
	}
	for _, want := range []string{`id="sort-name"`, "ФИО", "<th>Должность</th>", "<th>Повышение квалификации</th>"} {
		if !strings.Contains(body, want) {
			t.Errorf("body = %q, want it to contain %q", body, want)
		}
	}
}

func TestHandleDashboard_EmbeddedPage(t *testing.T) {
	srv, _, _ := newTestServer(dashboard.Assets, "")

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	for _, placeholder := range []string{"{{.Title}}", "{{.Columns}}"} {
		if strings.Contains(body, placeholder) {
			t.Errorf("placeholder %s left in embedded page", placeholder)
		}
	}
	if !strings.Contains(body, "<th>Учёная степень</th>") {
		t.Error("embedded page missing rendered table header")
	}
}

func TestHandleDashboard_AssetsMissing(t *testing.T) {
	srv, _, _ := newTestServer(nil, "Custom Title")

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv, _, _ := newTestServer(pageFS("<title>{{.Title}}</title>"), "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for non-root path, got %d", http.StatusNotFound, rec.Code)
	}
}
