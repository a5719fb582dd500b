package config

import (
	"log/slog"
	"sort"

	"github.com/kadrsp/importdesk"
)

// BuildOptions converts parsed configuration into SDK options for
// [importdesk.New]. The logger is passed through unchanged.
func BuildOptions(cfg *Config, logger *slog.Logger) []importdesk.Option {
	opts := []importdesk.Option{
		importdesk.WithBaseURL(cfg.BackendURL),
		importdesk.WithPort(cfg.Port),
		importdesk.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		importdesk.WithPollInterval(cfg.Poll.Interval.Duration()),
		importdesk.WithMaxAttempts(cfg.Poll.MaxAttempts),
		importdesk.WithCurriculumSheets(cfg.Curriculum.Sheets...),
		importdesk.WithSheetVerification(cfg.Curriculum.VerifySheets),
	}

	if cfg.Title != "" {
		opts = append(opts, importdesk.WithTitle(cfg.Title))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, importdesk.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	if logger != nil {
		opts = append(opts, importdesk.WithLogger(logger))
	}

	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
