package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	logpkg "github.com/m2mobi/apnsd/pkg/log"
)

// Environment selects the APNs gateway host.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// Host returns the provider API base URL for the environment.
func (e Environment) Host() string {
	if e == EnvironmentSandbox {
		return "https://api.sandbox.push.apple.com"
	}
	return "https://api.push.apple.com"
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Environment Environment

	// KeyFile is the path to the .p8 signing key. KeyPEM, when set, takes
	// precedence (used by tests).
	KeyFile string
	KeyPEM  []byte
	KeyID   string
	TeamID  string

	// DefaultTopic is used for messages that carry no topic.
	DefaultTopic string

	// Retries bounds delivery attempts per token (default 3).
	Retries int
	// RetryInterval separates attempts for one token (default 1s).
	RetryInterval time.Duration
	// RequestTimeout bounds a single gateway request (default 10s).
	RequestTimeout time.Duration

	// BaseURL overrides the environment host (used by tests).
	BaseURL string
	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client

	Logger logpkg.Logger
}

// Client is the APNs delivery engine for one worker. Connect before use;
// Add stages messages and Send delivers the staged batch.
type Client struct {
	opts   ClientOptions
	logger logpkg.Logger

	httpClient *http.Client
	tokens     *TokenSource
	connected  bool

	mu   sync.Mutex
	buf  []*Message
	errs []DeliveryError
}

// ErrNotConnected is returned by Send before a successful Connect.
var ErrNotConnected = errors.New("push: not connected")

// NewClient creates a Client. No network or key material is touched until
// Connect.
func NewClient(opts ClientOptions) *Client {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Client{opts: opts, logger: logger.With(logpkg.Component("push"))}
}

// Connect loads the signing key and prepares the HTTP client. A failure
// here is fatal to the owning worker.
func (c *Client) Connect(ctx context.Context) error {
	keyPEM := c.opts.KeyPEM
	if keyPEM == nil {
		b, err := os.ReadFile(c.opts.KeyFile)
		if err != nil {
			return fmt.Errorf("push: read signing key: %w", err)
		}
		keyPEM = b
	}
	ts, err := NewTokenSource(keyPEM, c.opts.KeyID, c.opts.TeamID)
	if err != nil {
		return err
	}
	// Issue one token up front so credential problems surface at connect
	// time rather than mid-batch.
	if _, err := ts.Bearer(); err != nil {
		return err
	}
	c.tokens = ts

	c.httpClient = c.opts.HTTPClient
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.opts.RequestTimeout}
	}
	c.connected = true
	c.logger.Debug("connected", logpkg.Str("host", c.baseURL()))
	return nil
}

// Disconnect releases the connection state.
func (c *Client) Disconnect() error {
	c.connected = false
	c.httpClient = nil
	c.tokens = nil
	return nil
}

// Add stages a message for the next Send.
func (c *Client) Add(m *Message) {
	c.mu.Lock()
	c.buf = append(c.buf, m)
	c.mu.Unlock()
}

// QueueLen reports the number of staged messages.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Send delivers every staged message to every recipient token, retrying
// retryable failures up to the configured bound. Per-token failures become
// DeliveryError records; Send itself fails only on misuse.
func (c *Client) Send(ctx context.Context) error {
	if !c.connected {
		return ErrNotConnected
	}
	c.mu.Lock()
	batch := c.buf
	c.buf = nil
	c.mu.Unlock()

	for _, m := range batch {
		if err := m.Validate(); err != nil {
			c.recordError(DeliveryError{
				MessageID: m.CustomIdentifier,
				Reason:    err.Error(),
				Attempts:  0,
				Time:      time.Now(),
			})
			continue
		}
		payload, err := m.Payload()
		if err != nil {
			c.recordError(DeliveryError{
				MessageID: m.CustomIdentifier,
				Reason:    err.Error(),
				Time:      time.Now(),
			})
			continue
		}
		for _, token := range m.Tokens {
			c.deliver(ctx, m, token, payload)
		}
	}
	return nil
}

// Errors returns the delivery failures accumulated since the last call and
// clears them.
func (c *Client) Errors() []DeliveryError {
	c.mu.Lock()
	out := c.errs
	c.errs = nil
	c.mu.Unlock()
	return out
}

func (c *Client) recordError(e DeliveryError) {
	c.mu.Lock()
	c.errs = append(c.errs, e)
	c.mu.Unlock()
}

func (c *Client) baseURL() string {
	if c.opts.BaseURL != "" {
		return c.opts.BaseURL
	}
	return c.opts.Environment.Host()
}

func (c *Client) deliver(ctx context.Context, m *Message, token string, payload []byte) {
	var lastStatus int
	var lastReason string

	attempts := 0
	for attempts < c.opts.Retries {
		attempts++
		status, reason, retryable := c.post(ctx, m, token, payload)
		if status == http.StatusOK {
			c.logger.Debug("delivered",
				logpkg.Str("token", token),
				logpkg.Int("attempts", attempts),
			)
			return
		}
		lastStatus, lastReason = status, reason
		if !retryable || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			attempts = c.opts.Retries
		case <-time.After(c.opts.RetryInterval):
		}
	}

	c.logger.Warn("delivery failed",
		logpkg.Str("token", token),
		logpkg.Str("reason", lastReason),
		logpkg.Int("status", lastStatus),
		logpkg.Int("attempts", attempts),
	)
	c.recordError(DeliveryError{
		MessageID: m.CustomIdentifier,
		Token:     token,
		Status:    lastStatus,
		Reason:    lastReason,
		Attempts:  attempts,
		Time:      time.Now(),
	})
}

// post performs one provider API request. It returns the HTTP status, the
// gateway reason (or transport error text), and whether a retry is worth
// attempting.
func (c *Client) post(ctx context.Context, m *Message, token string, payload []byte) (int, string, bool) {
	url := c.baseURL() + "/3/device/" + token
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err.Error(), false
	}

	bearer, err := c.tokens.Bearer()
	if err != nil {
		return 0, err.Error(), false
	}
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-id", uuid.NewString())
	req.Header.Set("apns-push-type", pushType(m))
	topic := m.Topic
	if topic == "" {
		topic = c.opts.DefaultTopic
	}
	if topic != "" {
		req.Header.Set("apns-topic", topic)
	}
	if m.Expiry > 0 {
		req.Header.Set("apns-expiration", strconv.FormatInt(m.Expiry, 10))
	}
	if m.Priority > 0 {
		req.Header.Set("apns-priority", strconv.Itoa(m.Priority))
	}
	if m.CollapseID != "" {
		req.Header.Set("apns-collapse-id", m.CollapseID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// transport failures (DNS, TLS, timeouts) are retryable
		return 0, err.Error(), true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return http.StatusOK, "", false
	}

	reason := gatewayReason(resp.Body)
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return resp.StatusCode, reason, retryable
}

func pushType(m *Message) string {
	if m.ContentAvailable && m.Title == "" && m.Body == "" && m.Badge == nil && m.Sound == "" {
		return "background"
	}
	return "alert"
}

func gatewayReason(body io.Reader) string {
	var parsed struct {
		Reason string `json:"reason"`
	}
	b, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return err.Error()
	}
	if json.Unmarshal(b, &parsed) == nil && parsed.Reason != "" {
		return parsed.Reason
	}
	return string(b)
}
