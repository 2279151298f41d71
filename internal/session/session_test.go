package session_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/normalize"
	"github.com/masa-finance/unified-scraper/internal/session"
)

// MockClient is a mock implementation of session.Client.
type MockClient struct {
	ConnectFunc      func(ctx context.Context) error
	IterMessagesFunc func(ctx context.Context, channel string, limit int, fn func(session.Message) error) error
	DisconnectFunc   func() error

	connects    int
	disconnects int
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.connects++
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockClient) IterMessages(ctx context.Context, channel string, limit int, fn func(session.Message) error) error {
	if m.IterMessagesFunc != nil {
		return m.IterMessagesFunc(ctx, channel, limit, fn)
	}
	return errors.New("IterMessagesFunc not defined")
}

func (m *MockClient) Disconnect() error {
	m.disconnects++
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc()
	}
	return nil
}

var _ = Describe("Backend", func() {
	var (
		mockClient *MockClient
		backend    *session.Backend
		creds      = session.Credentials{APIID: "1", APIHash: "hash"}
	)

	BeforeEach(func() {
		mockClient = &MockClient{}
		backend = session.NewBackend(creds, func(session.Credentials) (session.Client, error) {
			return mockClient, nil
		}, session.WithRetry(2, time.Millisecond))
	})

	It("should not be available without credentials", func() {
		b := session.NewBackend(session.Credentials{APIID: "1"}, nil)
		Expect(b.Available()).To(BeFalse())
		err := b.WithSession(context.Background(), func(context.Context, session.Client) error { return nil })
		Expect(errors.Is(err, types.ErrBackendUnavailable)).To(BeTrue())
	})

	It("should report a missing dialer", func() {
		b := session.NewBackend(creds, nil)
		Expect(b.Available()).To(BeTrue())
		err := b.WithSession(context.Background(), func(context.Context, session.Client) error { return nil })
		Expect(err).To(MatchError(session.ErrNoDialer))

		ok, err := b.CanDial()
		Expect(ok).To(BeFalse())
		Expect(err).To(MatchError(session.ErrNoDialer))
		ok, err = backend.CanDial()
		Expect(ok).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
	})

	It("should release the session after success", func() {
		called := false
		err := backend.WithSession(context.Background(), func(_ context.Context, c session.Client) error {
			called = true
			Expect(c).To(Equal(mockClient))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(called).To(BeTrue())
		Expect(mockClient.disconnects).To(Equal(1))
	})

	It("should release the session when the body fails", func() {
		boom := errors.New("boom")
		err := backend.WithSession(context.Background(), func(context.Context, session.Client) error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(mockClient.disconnects).To(Equal(1))
	})

	It("should release the session when the body panics", func() {
		Expect(func() {
			_ = backend.WithSession(context.Background(), func(context.Context, session.Client) error {
				panic("iteration blew up")
			})
		}).To(PanicWith("iteration blew up"))
		Expect(mockClient.disconnects).To(Equal(1))
	})

	It("should retry a failing connect", func() {
		mockClient.ConnectFunc = func(context.Context) error {
			if mockClient.connects < 3 {
				return errors.New("flood wait")
			}
			return nil
		}
		err := backend.WithSession(context.Background(), func(context.Context, session.Client) error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(mockClient.connects).To(Equal(3))
	})

	It("should give up after the retry budget and still release", func() {
		mockClient.ConnectFunc = func(context.Context) error { return errors.New("unauthorized") }
		err := backend.WithSession(context.Background(), func(context.Context, session.Client) error {
			Fail("body must not run")
			return nil
		})
		Expect(err).To(MatchError(ContainSubstring("unauthorized")))
		Expect(mockClient.connects).To(Equal(3))
		Expect(mockClient.disconnects).To(Equal(1))
	})

	It("should surface a disconnect failure when nothing else failed", func() {
		mockClient.DisconnectFunc = func() error { return errors.New("logout failed") }
		err := backend.WithSession(context.Background(), func(context.Context, session.Client) error { return nil })
		Expect(err).To(MatchError(ContainSubstring("logout failed")))
	})
})

var _ = Describe("ScrapeChannel", func() {
	date := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mockClient := &MockClient{
		IterMessagesFunc: func(_ context.Context, channel string, limit int, fn func(session.Message) error) error {
			defer GinkgoRecover()
			Expect(channel).To(Equal("durov"))
			Expect(limit).To(Equal(10))
			for _, m := range []session.Message{
				{ID: 2, Date: date, Text: "second", Views: 10, Forwards: 1, MediaType: "MessageMediaPhoto"},
				{ID: 1, Text: "first", Author: "pavel"},
			} {
				if err := fn(m); err != nil {
					return err
				}
			}
			return nil
		},
	}

	It("should produce session records the normalizer understands", func() {
		raws, err := session.ScrapeChannel(context.Background(), mockClient, "durov", 10, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(raws).To(HaveLen(2))

		_, hasMedia := raws[0].Get("media_type")
		Expect(hasMedia).To(BeFalse())

		rec := normalize.Normalize(raws[0], normalize.Context{SourceTarget: "durov", Provider: types.SessionProvider})
		Expect(rec.ID).To(Equal("2"))
		Expect(rec.SourceTarget).To(Equal("durov"))
		Expect(rec.Timestamp).To(Equal("2024-05-01T12:00:00Z"))
		Expect(rec.BodyText).To(Equal("second"))
		Expect(rec.Engagement.Views).To(Equal(int64(10)))
		Expect(rec.Engagement.Reshares).To(Equal(int64(1)))
		Expect(rec.CanonicalURL).To(Equal("https://t.me/durov/2"))

		second := normalize.Normalize(raws[1], normalize.Context{Provider: types.SessionProvider})
		Expect(second.Author).To(Equal("pavel"))
		Expect(second.Timestamp).To(BeEmpty())
	})

	It("should keep media details when asked to", func() {
		raws, err := session.ScrapeChannel(context.Background(), mockClient, "durov", 10, true)
		Expect(err).NotTo(HaveOccurred())
		mediaType, ok := raws[0].Get("media_type")
		Expect(ok).To(BeTrue())
		Expect(mediaType).To(Equal("MessageMediaPhoto"))
	})
})
