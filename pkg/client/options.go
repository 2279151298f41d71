package client

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

const (
	// DefaultBaseURL is the Apify REST v2 root.
	DefaultBaseURL = "https://api.apify.com/v2"
	// DefaultPageSize is the dataset page size; a shorter page ends the iteration.
	DefaultPageSize = 1000
	// DefaultPollInterval is the fixed sleep between run status checks.
	DefaultPollInterval = 5 * time.Second
	// DefaultPollTimeout is the per-job observation budget.
	DefaultPollTimeout = 300 * time.Second
)

// ProgressFunc receives a snapshot on every poll attempt.
type ProgressFunc func(types.ProgressSnapshot)

type Options struct {
	ignoreTLSCert       bool
	APIKey              string
	BaseURL             string
	Timeout             time.Duration
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	MaxIdleConns        int
	IdleConnTimeout     time.Duration
	PageSize            int
	Clock               Clock
	Progress            ProgressFunc
	// BearerAuth sends the token as an Authorization header instead of the token query parameter.
	BearerAuth bool
	HttpClient *http.Client
}

type Option func(*Options) error

// IgnoreTLSCert skips certificate verification, e.g. for a serve instance behind a self-signed certificate.
func IgnoreTLSCert() Option {
	return func(o *Options) error {
		o.ignoreTLSCert = true
		return nil
	}
}

// APIKey sets the API key for authentication
func APIKey(key string) Option {
	return func(o *Options) error {
		o.APIKey = key
		return nil
	}
}

// BaseURL points the client at a different API root, e.g. a test server.
func BaseURL(url string) Option {
	return func(o *Options) error {
		if url == "" {
			return errors.New("base url must not be empty")
		}
		o.BaseURL = url
		return nil
	}
}

func Timeout(timeout time.Duration) Option {
	return func(o *Options) error {
		o.Timeout = timeout
		return nil
	}
}

// MaxConnsPerHost sets the maximum number of connections per host (in all states) in the connection pool. The default is 100.
func MaxConnsPerHost(conns uint) Option {
	return func(o *Options) error {
		o.MaxConnsPerHost = int(conns)
		return nil
	}
}

// MaxIdleConnsPerHost sets the maximum number of idle connections per host in the connection pool. The default is 10.
func MaxIdleConnsPerHost(conns uint) Option {
	return func(o *Options) error {
		o.MaxIdleConnsPerHost = int(conns)
		return nil
	}
}

// MaxIdleConns sets the maximum number of idle connections in the connection pool. The default is 100.
func MaxIdleConns(conns uint) Option {
	return func(o *Options) error {
		o.MaxIdleConns = int(conns)
		return nil
	}
}

// IdleConnTimeout sets the timeout before an idle connection pool connection closes itself. The default is 2 minutes.
func IdleConnTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		o.IdleConnTimeout = timeout
		return nil
	}
}

// PageSize sets how many dataset items are requested per page. The default is 1000.
func PageSize(size uint) Option {
	return func(o *Options) error {
		if size == 0 {
			return errors.New("page size must be positive")
		}
		o.PageSize = int(size)
		return nil
	}
}

// WithClock replaces the wall clock used by the poll loop.
func WithClock(c Clock) Option {
	return func(o *Options) error {
		o.Clock = c
		return nil
	}
}

// WithProgress registers a callback invoked on every poll attempt.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) error {
		o.Progress = fn
		return nil
	}
}

// BearerAuth sends the token in the Authorization header.
func BearerAuth() Option {
	return func(o *Options) error {
		o.BearerAuth = true
		return nil
	}
}

func NewOptions(opts ...Option) (*Options, error) {
	o := &Options{
		BaseURL:             DefaultBaseURL,
		Timeout:             1 * time.Minute,
		MaxConnsPerHost:     100,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     2 * time.Minute,
		PageSize:            DefaultPageSize,
		Clock:               SystemClock,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.HttpClient == nil {
		transport := &http.Transport{
			MaxConnsPerHost:     o.MaxConnsPerHost,
			MaxIdleConns:        o.MaxIdleConns,
			MaxIdleConnsPerHost: o.MaxIdleConnsPerHost,
			IdleConnTimeout:     o.IdleConnTimeout,
		}
		if o.ignoreTLSCert {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		o.HttpClient = &http.Client{Transport: transport, Timeout: o.Timeout}
	}
	return o, nil
}
