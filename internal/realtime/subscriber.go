// Package realtime is the client side of the change feed: it holds one
// websocket subscription per (table, family), reconnects with backoff, and
// asks its owner to re-fetch after every (re)connect since the server does
// not replay missed events.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/famhub/internal/websocket"
)

const (
	defaultMinBackoff = 250 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
	readLimit         = 1 << 20
)

type Config struct {
	// ServerURL is the http(s) base URL of the famhub server.
	ServerURL string
	Token     string
	Table     string

	// OnConnect runs after each successful subscription, before any event
	// from that connection is delivered.
	OnConnect func(ctx context.Context)
	// OnMessage receives every change event in arrival order.
	OnMessage func(msg websocket.Message)

	MinBackoff time.Duration
	MaxBackoff time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Subscriber struct {
	cfg    Config
	logger *slog.Logger
}

func NewSubscriber(cfg Config) *Subscriber {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		cfg:    cfg,
		logger: logger.With("component", "realtime", "table", cfg.Table),
	}
}

// Run keeps the subscription alive until ctx is done. It returns nil on
// cancellation and an error only when the server refuses the subscription
// outright (bad token or table).
func (s *Subscriber) Run(ctx context.Context) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}

	for {
		var conn *ws.Conn
		err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
			c, err := s.subscribe(ctx, endpoint)
			if err != nil {
				if errors.Is(err, errRefused) {
					return err
				}
				s.logger.Warn("subscribe failed, retrying", "error", err)
				return retry.RetryableError(err)
			}
			conn = c
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if s.cfg.OnConnect != nil {
			s.cfg.OnConnect(ctx)
		}
		err = s.read(ctx, conn)
		conn.CloseNow()
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("subscription lost, reconnecting", "error", err)
	}
}

var errRefused = errors.New("subscription refused")

func (s *Subscriber) backoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.MinBackoff)
	b = retry.WithJitterPercent(20, b)
	return retry.WithCappedDuration(s.cfg.MaxBackoff, b)
}

func (s *Subscriber) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(s.cfg.ServerURL, "/") + "/ws")
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("table", s.cfg.Table)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// subscribe dials and waits for the server's subscribed acknowledgement.
func (s *Subscriber) subscribe(ctx context.Context, endpoint string) (*ws.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Token)

	conn, resp, err := ws.Dial(ctx, endpoint, &ws.DialOptions{
		HTTPClient: s.cfg.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: status %d", errRefused, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("read ack: %w", err)
	}
	var ack websocket.Message
	if err := json.Unmarshal(data, &ack); err != nil || ack.Type != websocket.TypeSubscribed {
		conn.CloseNow()
		return nil, fmt.Errorf("unexpected first message %q", data)
	}

	s.logger.Debug("subscribed", "family_id", ack.FamilyID)
	return conn, nil
}

func (s *Subscriber) read(ctx context.Context, conn *ws.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg websocket.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("dropping undecodable message", "error", err)
			continue
		}
		if !msg.EventType.Valid() || msg.Table != s.cfg.Table {
			s.logger.Debug("ignoring message", "type", msg.Type)
			continue
		}
		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(msg)
		}
	}
}
