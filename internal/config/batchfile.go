package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/sirupsen/logrus"
	"github.com/titanous/json5"

	"github.com/masa-finance/unified-scraper/api/types"
)

// BatchFile is the on-disk form of a scrape invocation.
type BatchFile struct {
	Channels          []string `json:"channels"`
	SearchTerms       []string `json:"search_terms,omitempty"`
	URLs              []string `json:"urls,omitempty"`
	Provider          string   `json:"provider,omitempty"`
	Limit             uint     `json:"limit"`
	Backend           string   `json:"backend"`
	OutputDir         string   `json:"output_dir"`
	OutputFormat      string   `json:"output_format"`
	IncludeMedia      bool     `json:"include_media"`
	IncludeComments   bool     `json:"include_comments"`
	DateFrom          string   `json:"date_from,omitempty"`
	DateTo            string   `json:"date_to,omitempty"`
	Days              uint     `json:"days,omitempty"`
	PostsFrom         uint     `json:"posts_from,omitempty"`
	PostsTo           uint     `json:"posts_to,omitempty"`
	Sort              string   `json:"sort,omitempty"`
	Lang              string   `json:"lang,omitempty"`
	FilterKeywords    []string `json:"filter_keywords"`
	FilterMinViews    int64    `json:"filter_min_views"`
	RetryCount        int      `json:"retry_count,omitempty"`
	RetryDelay        float64  `json:"retry_delay,omitempty"`
	ResumeFrom        string   `json:"resume_from,omitempty"`
	MaxConcurrentJobs int      `json:"max_concurrent_jobs,omitempty"`
}

// SampleBatchFile is written by generate-config.
var SampleBatchFile = BatchFile{
	Channels:       []string{"example_channel1", "example_channel2"},
	Limit:          1000,
	Backend:        string(types.BackendAuto),
	OutputDir:      "./output",
	OutputFormat:   "csv",
	IncludeMedia:   true,
	FilterKeywords: []string{"crypto", "bitcoin"},
	FilterMinViews: 100,
	RetryCount:     3,
	RetryDelay:     5,
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// ReadBatchFile reads a JSON5 file and merges <name>.local.<ext> over it when present.
func ReadBatchFile[T any](name string) (T, error) {
	var out T
	allNotFound := true

	prefix, ext := splitExt(filepath.Base(name))

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		if err := json5.Unmarshal(defaultFile, &out); err != nil {
			return out, fmt.Errorf("error parsing %s: %w", name, err)
		}
		allNotFound = false
	}

	localPath := filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
	localFile, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		if err := json5.Unmarshal(localFile, &override); err != nil {
			return out, fmt.Errorf("error parsing %s: %w", localPath, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		logrus.Infof("Merged batch file with local overrides from %s", localPath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// WriteBatchFile writes v as indented JSON.
func WriteBatchFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(name, append(data, '\n'), 0o644)
}

// ParseDate accepts an ISO date or date-time.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected ISO format", s)
}

// Batch builds the batch described by the file, filling gaps from cfg.
func (f BatchFile) Batch(cfg Config) (types.Batch, error) {
	backend, err := types.ParseBackend(f.Backend)
	if err != nil {
		return types.Batch{}, err
	}
	from, err := ParseDate(f.DateFrom)
	if err != nil {
		return types.Batch{}, err
	}
	to, err := ParseDate(f.DateTo)
	if err != nil {
		return types.Batch{}, err
	}

	req := types.JobRequest{
		Targets:      f.Channels,
		SearchTerms:  f.SearchTerms,
		URLs:         f.URLs,
		Limit:        f.Limit,
		Provider:     types.ProviderId(f.Provider),
		DateFrom:     from,
		DateTo:       to,
		Days:         f.Days,
		PostsFrom:    f.PostsFrom,
		PostsTo:      f.PostsTo,
		Sort:         f.Sort,
		Lang:         f.Lang,
		IncludeMedia: f.IncludeMedia,
		ResumeFrom:   f.ResumeFrom,
		MemoryMB:     cfg.MemoryMB,
	}
	if req.Limit == 0 {
		req.Limit = cfg.Limit
	}
	if req.ResumeFrom == "" {
		req.ResumeFrom = cfg.ResumeFrom
	}

	b := types.Batch{
		Request:           req,
		Backend:           backend,
		Keywords:          f.FilterKeywords,
		MinViews:          f.FilterMinViews,
		MaxConcurrentJobs: f.MaxConcurrentJobs,
		PollTimeout:       cfg.PollTimeout,
		PollInterval:      cfg.PollInterval,
	}
	if b.MaxConcurrentJobs == 0 {
		b.MaxConcurrentJobs = cfg.MaxConcurrentJobs
	}
	return b, nil
}
