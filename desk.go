package importdesk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kadrsp/importdesk/dashboard"
	"github.com/kadrsp/importdesk/internal/poller"
	"github.com/kadrsp/importdesk/internal/render"
	"github.com/kadrsp/importdesk/internal/roster"
	"github.com/kadrsp/importdesk/internal/server"
	"github.com/kadrsp/importdesk/internal/store"
	"github.com/kadrsp/importdesk/internal/upload"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPort           = 8080
	defaultTitle          = "Импорт кадровых данных"

	// non-info banners disappear after this long
	bannerTTL = 5 * time.Second

	// TeachersPath is the backend endpoint listing imported teachers.
	TeachersPath = "/api/teachers"
)

// Form identifies one of the two upload forms.
type Form string

const (
	FormTeachers   Form = "teachers"
	FormCurriculum Form = "curriculum"
)

type (
	// Teacher is one staff record as served by the backend.
	Teacher = roster.Teacher

	// Qualification is one course in a teacher's qualification list.
	Qualification = roster.Qualification

	// File is a client-selected file. A zero File means nothing was selected.
	File = upload.File

	// PollResult describes a finished poll cycle, attempt by attempt.
	PollResult = poller.Result

	// PollAttempt is one request/response cycle inside a [PollResult].
	PollAttempt = poller.Attempt

	// PollOutcome is the terminal state of a poll cycle.
	PollOutcome = poller.Outcome
)

const (
	PollSucceeded = poller.OutcomeSuccess
	PollExhausted = poller.OutcomeExhausted
	PollCanceled  = poller.OutcomeCanceled
)

// Desk is the controller behind the import page.
//
// Desk owns every piece of display state: the stored teachers, the sort
// direction, the status banner and the submit guards of the two forms. The
// renderer and the sort work on that state under the desk's lock, and every
// change is published to the board store that the page reads from.
//
// The typical lifecycle is:
//
//	desk, err := importdesk.New(importdesk.WithBaseURL("http://localhost:8000"))
//	if err != nil {
//	    slog.Error("failed to create desk", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	desk.Serve(ctx) // blocks until context cancelled
//
// All methods are safe for concurrent use.
type Desk struct {
	title          string
	baseURL        string
	headers        map[string]string
	requestTimeout time.Duration
	pollInterval   time.Duration
	maxAttempts    int
	port           int
	logger         *slog.Logger
	sleeper        Sleeper
	now            func() time.Time
	refresh        func(context.Context) error
	callbacks      []func(Banner)

	client  *poller.Client
	uploads *upload.Handler
	board   *store.MemoryStore
	polls   singleflight.Group

	mu         sync.Mutex
	teachers   []roster.Teacher
	tableHTML  string
	toggle     *roster.Toggle
	banner     *store.Banner
	submitting map[Form]bool
}

// New creates a [Desk] with the given options.
//
// [WithBaseURL] is required. Other options have defaults:
//   - Poll interval: 2 seconds
//   - Max attempts: 10
//   - Request timeout: 30 seconds
//   - Curriculum sheets: ПланСвод, План
//   - Port: 8080
func New(opts ...Option) (*Desk, error) {
	cfg := &deskConfig{
		requestTimeout: defaultRequestTimeout,
		pollInterval:   poller.DefaultInterval,
		maxAttempts:    poller.DefaultMaxAttempts,
		sheets:         upload.DefaultSheets,
		port:           defaultPort,
		title:          defaultTitle,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	sleeper := cfg.sleeper
	if sleeper == nil {
		sleeper = poller.Sleep
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}

	client := poller.NewClient()
	d := &Desk{
		title:          cfg.title,
		baseURL:        strings.TrimRight(cfg.baseURL, "/"),
		headers:        copyMap(cfg.headers),
		requestTimeout: cfg.requestTimeout,
		pollInterval:   cfg.pollInterval,
		maxAttempts:    cfg.maxAttempts,
		port:           cfg.port,
		logger:         logger,
		sleeper:        sleeper,
		now:            now,
		callbacks:      cfg.callbacks,
		client:         client,
		board:          store.NewMemoryStore(),
		teachers:       []roster.Teacher{},
		toggle:         roster.NewToggle(),
		submitting:     make(map[Form]bool),
	}
	d.uploads = upload.NewHandler(client, upload.Config{
		BaseURL:      d.baseURL,
		Headers:      d.headers,
		Timeout:      d.requestTimeout,
		Sheets:       cfg.sheets,
		VerifySheets: cfg.verifySheets,
	}, logger)

	if cfg.refreshSet {
		d.refresh = cfg.refresh
	} else {
		d.refresh = d.LoadTeachers
	}

	return d, nil
}

// BaseURL returns the backend root the desk talks to.
func (d *Desk) BaseURL() string { return d.baseURL }

// Port returns the port used by [Desk.Serve].
func (d *Desk) Port() int { return d.port }

// PollInterval returns the pause between poll attempts.
func (d *Desk) PollInterval() time.Duration { return d.pollInterval }

// MaxAttempts returns the poll attempt budget.
func (d *Desk) MaxAttempts() int { return d.maxAttempts }

// CurriculumSheets returns the sheet names sent with curriculum uploads.
func (d *Desk) CurriculumSheets() []string { return d.uploads.Sheets() }

// Teachers returns a copy of the stored teachers in display order.
func (d *Desk) Teachers() []Teacher {
	d.mu.Lock()
	defer d.mu.Unlock()
	return roster.Clone(d.teachers)
}

// Board returns the current display snapshot.
func (d *Desk) Board() Board {
	return d.board.Get()
}

// Submitting reports whether form's submit control is currently disabled.
func (d *Desk) Submitting(form Form) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitting[form]
}

// PollTeachers waits for the backend to report imported teachers.
//
// It checks GET /api/teachers up to MaxAttempts times, PollInterval apart.
// The first non-empty answer is stored sorted by name, rendered and
// announced; no further requests follow. When every attempt fails or comes
// back empty a failure banner is shown instead. Individual attempt errors
// are logged, never returned: inspect the [PollResult].
//
// Concurrent calls share one poll cycle and receive the same result; the
// cycle runs under the context of the call that started it.
func (d *Desk) PollTeachers(ctx context.Context) PollResult {
	v, _, _ := d.polls.Do("teachers", func() (any, error) {
		return d.pollTeachers(ctx), nil
	})
	return v.(PollResult)
}

func (d *Desk) pollTeachers(ctx context.Context) PollResult {
	p := poller.New(d.client, poller.Config{
		URL:         d.baseURL + TeachersPath,
		Headers:     d.headers,
		Timeout:     d.requestTimeout,
		Interval:    d.pollInterval,
		MaxAttempts: d.maxAttempts,
	}, d.sleeper, d.logger)

	res := p.Run(ctx)

	switch res.Outcome {
	case poller.OutcomeSuccess:
		teachers := roster.Clone(res.Records)
		roster.SortByName(teachers, true)

		d.mu.Lock()
		d.teachers = teachers
		d.renderLocked()
		d.mu.Unlock()

		d.notify(KindSuccess, msgPollSucceeded)
		d.logger.Info("teachers available",
			"records", len(teachers),
			"attempts", len(res.Attempts),
		)
	case poller.OutcomeExhausted:
		d.notify(KindDanger, msgPollExhausted)
		d.logger.Warn("teachers not available",
			"attempts", len(res.Attempts),
			"interval", d.pollInterval.String(),
		)
	case poller.OutcomeCanceled:
		d.logger.Info("teachers poll canceled", "attempts", len(res.Attempts))
	}

	return res
}

// LoadTeachers fetches the teachers list once, without retrying, and
// renders whatever the backend returns, including an empty list. The
// backend order is kept.
func (d *Desk) LoadTeachers(ctx context.Context) error {
	resp := d.client.Fetch(ctx, http.MethodGet, d.baseURL+TeachersPath, d.headers, d.requestTimeout)
	if err := poller.CheckStatus(resp); err != nil {
		d.logger.Warn("failed to load teachers", "request_id", resp.RequestID, "error", err.Error())
		return err
	}

	teachers, err := poller.DecodeTeachers(resp.Body)
	if err != nil {
		d.logger.Warn("failed to decode teachers", "request_id", resp.RequestID, "error", err.Error())
		return err
	}

	d.mu.Lock()
	d.teachers = teachers
	d.renderLocked()
	d.publishLocked()
	d.mu.Unlock()

	d.logger.Debug("teachers loaded", "records", len(teachers))
	return nil
}

// SortByName sorts the stored teachers by full name, re-renders the table
// and returns the new order. The first call sorts ascending and each call
// flips the direction for the next one. Ties keep their relative order.
func (d *Desk) SortByName() []Teacher {
	d.mu.Lock()
	defer d.mu.Unlock()

	ascending := d.toggle.Apply(d.teachers)
	d.renderLocked()
	d.publishLocked()

	d.logger.Debug("teachers sorted", "ascending", ascending, "records", len(d.teachers))
	return roster.Clone(d.teachers)
}

// UploadTeachers submits a teachers import and, once the backend accepts
// it, polls until the imported records appear.
//
// The returned error covers the upload only; the poll outcome is in the
// [PollResult] and on the banner.
func (d *Desk) UploadTeachers(ctx context.Context, f File) (PollResult, error) {
	if err := upload.ValidateTeachersFile(f); err != nil {
		d.notify(KindDanger, msgSelectFile)
		return PollResult{}, err
	}

	release, err := d.acquire(FormTeachers)
	if err != nil {
		d.notify(KindDanger, msgSubmitInProgress)
		return PollResult{}, err
	}
	defer release()

	d.notify(KindInfo, msgTeachersImporting)

	if err := d.uploads.Teachers(ctx, f); err != nil {
		d.notify(KindDanger, failureMessage(err))
		return PollResult{}, err
	}

	d.notify(KindInfo, msgTeachersAwaitingData)
	return d.PollTeachers(ctx), nil
}

// UploadCurriculum submits a curriculum workbook and returns the number of
// imported records. Only .xlsx files are sent. On success the curriculum
// refresh step runs; its failure is logged, not returned.
func (d *Desk) UploadCurriculum(ctx context.Context, f File) (int, error) {
	if err := upload.ValidateCurriculumFile(f); err != nil {
		if errors.Is(err, upload.ErrUnsupportedFormat) {
			d.notify(KindDanger, msgUnsupportedFormat)
		} else {
			d.notify(KindDanger, msgSelectFileForUpload)
		}
		return 0, err
	}

	release, err := d.acquire(FormCurriculum)
	if err != nil {
		d.notify(KindDanger, msgSubmitInProgress)
		return 0, err
	}
	defer release()

	d.notify(KindInfo, msgCurriculumProcessing)

	imported, err := d.uploads.Curriculum(ctx, f)
	if err != nil {
		d.notify(KindDanger, failureMessage(err))
		return 0, err
	}

	d.notify(KindSuccess, importedMessage(imported))

	if d.refresh != nil {
		if err := d.refresh(ctx); err != nil {
			d.logger.Warn("refresh after curriculum upload failed", "error", err.Error())
		}
	}
	return imported, nil
}

// Serve loads the teachers table once and serves the import page until
// ctx is cancelled.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (d *Desk) Serve(ctx context.Context) error {
	d.logger.Info("import desk starting", "backend", d.baseURL)
	d.logger.Info("page available", "url", fmt.Sprintf("http://localhost:%d", d.port))

	if ctx.Err() != nil {
		return nil
	}

	// failure here only leaves the table empty
	_ = d.LoadTeachers(ctx)

	httpServer := server.NewServer(d.board, deskActions{d}, d.port, dashboard.Assets, d.title, d.logger)
	if err := httpServer.Start(ctx); err != nil {
		d.client.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	d.client.Close()
	d.logger.Info("import desk stopped")
	return nil
}

// Close releases idle backend connections.
func (d *Desk) Close() {
	d.client.Close()
}

// acquire disables form's submit control. The returned release re-enables
// it and must be called exactly once.
func (d *Desk) acquire(form Form) (release func(), err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.submitting[form] {
		return nil, fmt.Errorf("%s form: %w", form, ErrSubmitInProgress)
	}
	d.submitting[form] = true
	d.publishLocked()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.submitting, form)
		d.publishLocked()
	}, nil
}

// notify replaces the banner and publishes it.
func (d *Desk) notify(kind, msg string) {
	shownAt := d.now()
	banner := store.Banner{Kind: kind, Message: msg, ShownAt: shownAt}
	if kind != KindInfo {
		expires := shownAt.Add(bannerTTL)
		banner.ExpiresAt = &expires
	}

	d.mu.Lock()
	d.banner = &banner
	d.publishLocked()
	d.mu.Unlock()

	for _, cb := range d.callbacks {
		invokeCallbackSafe(cb, banner, d.logger)
	}
}

// renderLocked re-renders the table body from d.teachers. d.mu must be held.
func (d *Desk) renderLocked() {
	html, err := render.TableBodyString(d.teachers)
	if err != nil {
		d.logger.Error("failed to render teachers table", "error", err)
		return
	}
	d.tableHTML = html
}

// publishLocked pushes the current state to the board store. d.mu must be
// held so that published versions follow state changes in order.
func (d *Desk) publishLocked() {
	submitting := make([]string, 0, len(d.submitting))
	for _, f := range []Form{FormTeachers, FormCurriculum} {
		if d.submitting[f] {
			submitting = append(submitting, string(f))
		}
	}

	d.board.Update(store.Board{
		Teachers:          d.teachers,
		TableHTML:         d.tableHTML,
		Banner:            d.banner,
		NextSortAscending: d.toggle.Next(),
		Submitting:        submitting,
	})
}

// deskActions adapts Desk to the form endpoints of the local page.
type deskActions struct {
	d *Desk
}

func (a deskActions) UploadTeachers(ctx context.Context, name string, content io.Reader) error {
	_, err := a.d.UploadTeachers(ctx, File{Name: name, Content: content})
	return err
}

func (a deskActions) UploadCurriculum(ctx context.Context, name string, content io.Reader) error {
	_, err := a.d.UploadCurriculum(ctx, File{Name: name, Content: content})
	return err
}

func (a deskActions) Sort() {
	a.d.SortByName()
}

func (a deskActions) Poll(ctx context.Context) {
	a.d.PollTeachers(ctx)
}

// invokeCallbackSafe calls a banner callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Banner), banner Banner, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("banner callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
				"banner", banner.Message,
			)
		}
	}()
	cb(banner)
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
