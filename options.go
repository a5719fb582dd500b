package importdesk

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/kadrsp/importdesk/internal/poller"
)

// Sleeper pauses between poll attempts. It must return early with ctx's
// error when ctx is done.
type Sleeper = poller.Sleeper

// deskConfig holds mutable state during Desk construction.
type deskConfig struct {
	title          string
	baseURL        string
	headers        map[string]string
	requestTimeout time.Duration
	pollInterval   time.Duration
	maxAttempts    int
	sheets         []string
	verifySheets   bool
	port           int
	logger         *slog.Logger
	sleeper        Sleeper
	now            func() time.Time
	refresh        func(context.Context) error
	refreshSet     bool
	callbacks      []func(Banner)
}

// Option is a function that configures a [Desk] during construction.
//
// Options return an error if validation fails.
type Option func(*deskConfig) error

// WithBaseURL sets the backend root, e.g. "http://kadrsp.local:8000".
// Required.
func WithBaseURL(rawURL string) Option {
	return func(cfg *deskConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid base URL: " + err.Error())
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("base URL must use http:// or https://")
		}
		cfg.baseURL = rawURL
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every backend request.
// Arguments are key/value pairs; an odd count is an error.
//
// Example:
//
//	importdesk.WithHeaders("Authorization", "Bearer "+token)
func WithHeaders(keyValues ...string) Option {
	return func(cfg *deskConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("headers must be key/value pairs")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			if keyValues[i] == "" {
				return errors.New("header name cannot be empty")
			}
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithRequestTimeout bounds every single backend request. Defaults to 30s.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *deskConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithPollInterval sets the pause between teacher poll attempts.
// Defaults to 2 seconds.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *deskConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithMaxAttempts sets how many times the teachers endpoint is checked
// before giving up. Defaults to 10.
func WithMaxAttempts(n int) Option {
	return func(cfg *deskConfig) error {
		if n <= 0 {
			return errors.New("max attempts must be positive")
		}
		cfg.maxAttempts = n
		return nil
	}
}

// WithCurriculumSheets sets the workbook sheets named in curriculum
// uploads. Defaults to "ПланСвод" and "План".
func WithCurriculumSheets(sheets ...string) Option {
	return func(cfg *deskConfig) error {
		if len(sheets) == 0 {
			return errors.New("at least one curriculum sheet is required")
		}
		for _, s := range sheets {
			if s == "" {
				return errors.New("curriculum sheet name cannot be empty")
			}
		}
		cfg.sheets = append([]string(nil), sheets...)
		return nil
	}
}

// WithSheetVerification makes curriculum uploads open the workbook locally
// and refuse it when a configured sheet is missing.
func WithSheetVerification(enabled bool) Option {
	return func(cfg *deskConfig) error {
		cfg.verifySheets = enabled
		return nil
	}
}

// WithPort sets the port of the local web page served by [Desk.Serve].
// Defaults to 8080.
func WithPort(port int) Option {
	return func(cfg *deskConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the page title. Defaults to "Импорт кадровых данных".
func WithTitle(title string) Option {
	return func(cfg *deskConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *deskConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSleeper replaces the wall-clock pause between poll attempts.
func WithSleeper(s Sleeper) Option {
	return func(cfg *deskConfig) error {
		if s == nil {
			return errors.New("sleeper cannot be nil")
		}
		cfg.sleeper = s
		return nil
	}
}

// WithClock replaces time.Now for banner timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *deskConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}

// WithCurriculumRefresh replaces the step run after a successful curriculum
// upload. The default reloads the teachers table once. A nil fn disables
// the refresh.
func WithCurriculumRefresh(fn func(ctx context.Context) error) Option {
	return func(cfg *deskConfig) error {
		cfg.refresh = fn
		cfg.refreshSet = true
		return nil
	}
}

// WithBannerCallback registers fn to be called with every banner the desk
// shows. Callbacks run synchronously after the board is updated; a panic in
// fn is logged and swallowed.
func WithBannerCallback(fn func(Banner)) Option {
	return func(cfg *deskConfig) error {
		if fn == nil {
			return errors.New("banner callback cannot be nil")
		}
		cfg.callbacks = append(cfg.callbacks, fn)
		return nil
	}
}
