package poller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadrsp/importdesk/internal/roster"
)

// Defaults for the teachers availability check.
const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 10
)

// Outcome is the terminal state of a poll cycle.
type Outcome string

const (
	// OutcomeSuccess means an attempt returned a non-empty collection.
	OutcomeSuccess Outcome = "success"

	// OutcomeExhausted means every attempt failed or came back empty.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeCanceled means the context ended the cycle early.
	OutcomeCanceled Outcome = "canceled"
)

// Attempt records one request/response cycle.
type Attempt struct {
	// Number is 1-based.
	Number int

	// StatusCode is zero when no response was received.
	StatusCode int

	// Count is the number of decoded records; zero on failure.
	Count int

	Latency time.Duration

	// Err is the transport, status or decode failure, if any. An empty
	// collection is not an error.
	Err error
}

// Result is the outcome of [Poller.Run].
type Result struct {
	Outcome  Outcome
	Attempts []Attempt

	// Waits is the number of full intervals slept.
	Waits int

	// Records is the non-empty collection on success, nil otherwise.
	Records []roster.Teacher
}

// Fetcher issues a body-less request. [*Client] implements it.
type Fetcher interface {
	Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response
}

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock [Sleeper].
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config describes the endpoint to poll and the retry budget.
type Config struct {
	URL         string
	Headers     map[string]string
	Timeout     time.Duration
	Interval    time.Duration
	MaxAttempts int
}

// Poller checks an endpoint until it returns a non-empty collection of
// teachers or the attempt budget is spent.
//
// Attempts are strictly sequential: attempt n+1 starts only after attempt
// n's response has been processed and, on failure, after a full interval.
// Failed attempts are logged and recorded in the [Result], never returned.
type Poller struct {
	cfg     Config
	fetcher Fetcher
	sleep   Sleeper
	logger  *slog.Logger
}

// New creates a [Poller]. Zero Interval or MaxAttempts fall back to
// [DefaultInterval] and [DefaultMaxAttempts]; a nil sleep uses [Sleep].
func New(fetcher Fetcher, cfg Config, sleep Sleeper, logger *slog.Logger) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if sleep == nil {
		sleep = Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, fetcher: fetcher, sleep: sleep, logger: logger}
}

// Run executes one poll cycle.
//
// A failed or empty attempt is followed by a full interval even when it was
// the last one, so an exhausted cycle takes MaxAttempts intervals.
func (p *Poller) Run(ctx context.Context) Result {
	var res Result

	for attempts := 0; attempts < p.cfg.MaxAttempts; attempts++ {
		attempt, teachers := p.attempt(ctx, attempts+1)
		res.Attempts = append(res.Attempts, attempt)

		if attempt.Err == nil && len(teachers) > 0 {
			p.logger.Debug("poll succeeded",
				"attempt", attempt.Number,
				"records", attempt.Count,
				"latency_ms", attempt.Latency.Milliseconds(),
			)
			res.Outcome = OutcomeSuccess
			res.Records = teachers
			return res
		}

		if ctx.Err() != nil {
			res.Outcome = OutcomeCanceled
			return res
		}

		if attempt.Err != nil {
			p.logger.Warn("poll attempt failed",
				"attempt", attempt.Number,
				"max_attempts", p.cfg.MaxAttempts,
				"status_code", attempt.StatusCode,
				"error", attempt.Err.Error(),
			)
		} else {
			p.logger.Debug("poll attempt returned no records",
				"attempt", attempt.Number,
				"max_attempts", p.cfg.MaxAttempts,
			)
		}

		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			res.Outcome = OutcomeCanceled
			return res
		}
		res.Waits++
	}

	res.Outcome = OutcomeExhausted
	return res
}

func (p *Poller) attempt(ctx context.Context, n int) (Attempt, []roster.Teacher) {
	resp := p.fetcher.Fetch(ctx, http.MethodGet, p.cfg.URL, p.cfg.Headers, p.cfg.Timeout)
	attempt := Attempt{
		Number:     n,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
	}

	if err := CheckStatus(resp); err != nil {
		attempt.Err = err
		return attempt, nil
	}

	teachers, err := DecodeTeachers(resp.Body)
	if err != nil {
		attempt.Err = err
		return attempt, nil
	}

	attempt.Count = len(teachers)
	return attempt, teachers
}

// DecodeTeachers parses a teachers list. A JSON null decodes to an empty,
// non-nil slice; anything that is not a list is a *[ParseError].
func DecodeTeachers(body []byte) ([]roster.Teacher, error) {
	var teachers []roster.Teacher
	if err := DecodeJSON(body, &teachers); err != nil {
		return nil, err
	}
	if teachers == nil {
		teachers = []roster.Teacher{}
	}
	return teachers, nil
}
