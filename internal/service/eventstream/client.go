package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	applogger "AlphaForge/pkg/logger"
)

// Client implements an EventSource backed by the extraction service's
// websocket push feed. Each frame carries one event with its factor
// payloads.
type Client struct {
	url            string
	token          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a websocket event stream client.
func New(url, token string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Client {
	return &Client{
		url:            url,
		token:          token,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.url
	if c.token != "" {
		u = fmt.Sprintf("%s?token=%s", c.url, c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("eventstream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	if c.l != nil {
		c.l.Info("eventstream connected", applogger.String("url", c.url))
	}
	return nil
}

type streamFrame struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

// Events streams events and errors. A read failure closes both channels
// after emitting the error; the caller decides whether to Reconnect.
func (c *Client) Events(ctx context.Context) (<-chan *models.Event, <-chan error) {
	events := make(chan *models.Event, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("eventstream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("eventstream read: %w", err)
					return
				}
				var f streamFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-event frames
					continue
				}
				if f.Type != "event" || len(f.Event) == 0 {
					continue
				}
				var ev models.Event
				if err := json.Unmarshal(f.Event, &ev); err != nil {
					if c.l != nil {
						c.l.Warn("eventstream bad event frame", applogger.Error(err))
					}
					continue
				}
				select {
				case events <- &ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }

var _ drepo.EventSource = (*Client)(nil)
