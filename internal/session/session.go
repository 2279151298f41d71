// Package session is the synchronous backend that reads channels over one
// authenticated messaging session instead of the remote job API.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
)

const (
	DefaultRetryCount  = 3
	DefaultRetryDelay  = 5 * time.Second
	DefaultSessionName = "telegram_session"
)

// ErrNoDialer is returned when credentials are configured but no session client is linked in.
var ErrNoDialer = errors.New("no session client available")

// Credentials authenticate the personal messaging account.
type Credentials struct {
	APIID       string
	APIHash     string
	SessionName string
}

// Available reports whether enough is configured to open a session.
func (c Credentials) Available() bool {
	return c.APIID != "" && c.APIHash != ""
}

// Message is one channel message as delivered by the session client.
type Message struct {
	ID        int64
	Channel   string
	Date      time.Time
	Text      string
	Views     int64
	Forwards  int64
	Replies   int64
	Author    string
	MediaType string
	MediaURLs []string
}

// Raw converts the message into the session family record shape.
func (m Message) Raw() types.RawRecord {
	r := types.NewRawRecord(
		"id", m.ID,
		"channel", m.Channel,
	)
	if !m.Date.IsZero() {
		r.Set("date", m.Date.UTC().Format(time.RFC3339))
	} else {
		r.Set("date", nil)
	}
	r.Set("text", m.Text)
	r.Set("views", m.Views)
	r.Set("forwards", m.Forwards)
	r.Set("replies", m.Replies)
	if m.Author != "" {
		r.Set("author", m.Author)
	} else {
		r.Set("author", nil)
	}
	if m.Channel != "" {
		r.Set("url", fmt.Sprintf("https://t.me/%s/%d", m.Channel, m.ID))
	}
	if m.MediaType != "" {
		r.Set("has_media", true)
		r.Set("media_type", m.MediaType)
	}
	if len(m.MediaURLs) > 0 {
		urls := make([]any, 0, len(m.MediaURLs))
		for _, u := range m.MediaURLs {
			urls = append(urls, u)
		}
		r.Set("media_urls", urls)
	}
	return r
}

// Client is an authenticated messaging session. Iteration on one client is
// strictly sequential.
type Client interface {
	Connect(ctx context.Context) error
	// IterMessages yields up to limit messages of a channel, newest first.
	IterMessages(ctx context.Context, channel string, limit int, fn func(Message) error) error
	Disconnect() error
}

// Dialer builds an unconnected client for the given credentials.
type Dialer func(creds Credentials) (Client, error)

// Backend opens scoped sessions.
type Backend struct {
	creds      Credentials
	dialer     Dialer
	retryCount int
	retryDelay time.Duration
}

type Option func(*Backend)

// WithRetry sets how often and how far apart a failed connect is retried.
func WithRetry(count int, delay time.Duration) Option {
	return func(b *Backend) {
		b.retryCount = count
		b.retryDelay = delay
	}
}

func NewBackend(creds Credentials, dialer Dialer, opts ...Option) *Backend {
	if creds.SessionName == "" {
		creds.SessionName = DefaultSessionName
	}
	b := &Backend{
		creds:      creds,
		dialer:     dialer,
		retryCount: DefaultRetryCount,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Available reports whether credentials are configured.
func (b *Backend) Available() bool {
	return b != nil && b.creds.Available()
}

// CanDial reports whether a session client is linked in.
func (b *Backend) CanDial() (bool, error) {
	if b == nil || b.dialer == nil {
		return false, ErrNoDialer
	}
	return true, nil
}

// WithSession acquires one session, runs fn on it and releases the session
// on every exit path, panics included.
func (b *Backend) WithSession(ctx context.Context, fn func(ctx context.Context, c Client) error) (err error) {
	if !b.Available() {
		return fmt.Errorf("%w: session credentials are not set", types.ErrBackendUnavailable)
	}
	if b.dialer == nil {
		return ErrNoDialer
	}

	c, err := b.dialer(b.creds)
	if err != nil {
		return fmt.Errorf("creating session client: %w", err)
	}
	defer func() {
		if dErr := c.Disconnect(); dErr != nil {
			logrus.Warnf("Error disconnecting session: %v", dErr)
			if err == nil {
				err = fmt.Errorf("disconnecting session: %w", dErr)
			}
		}
	}()

	retries := b.retryCount
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(b.retryDelay), uint64(retries)), ctx)
	connect := func() error {
		return c.Connect(ctx)
	}
	notify := func(err error, next time.Duration) {
		logrus.Warnf("Session connect failed: %v, retrying in %s", err, next)
	}
	if err := backoff.RetryNotify(connect, policy, notify); err != nil {
		return fmt.Errorf("connecting session: %w", err)
	}
	logrus.WithField("session", b.creds.SessionName).Info("Session connected")

	return fn(ctx, c)
}

// ScrapeChannel reads up to limit messages of one channel as raw records.
// Media details are dropped unless includeMedia is set.
func ScrapeChannel(ctx context.Context, c Client, channel string, limit int, includeMedia bool) ([]types.RawRecord, error) {
	out := []types.RawRecord{}
	err := c.IterMessages(ctx, channel, limit, func(m Message) error {
		if m.Channel == "" {
			m.Channel = channel
		}
		if !includeMedia {
			m.MediaType = ""
			m.MediaURLs = nil
		}
		out = append(out, m.Raw())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating %s: %w", channel, err)
	}
	return out, nil
}
