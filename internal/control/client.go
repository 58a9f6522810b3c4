// Package control maintains the websocket session with the server: it
// authenticates, receives content snapshots and remote commands, and
// ships telemetry upstream until the server acknowledges it.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
	"github.com/avelara/stopsetd/internal/player"
	"github.com/avelara/stopsetd/internal/telemetry"
)

const (
	writeTimeout   = 10 * time.Second
	minBackoff     = time.Second
	maxBackoff     = 30 * time.Second
	handshakeLimit = 15 * time.Second
	statusThrottle = 250 * time.Millisecond
)

// envelope frames every message after the auth handshake.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type authRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ProtocolVersion int    `json:"protocol_version"`
}

type authResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

var ErrAuthRejected = errors.New("server rejected credentials")

// Client is the persistent control connection. It reconnects with capped
// exponential backoff; auth rejection is fatal since retrying the same
// credentials cannot succeed.
type Client struct {
	cfg           *config.Config
	logger        *telemetry.Logger
	applySnapshot func(catalog.Snapshot)
	command       func(player.Command) error
	status        func() player.ControllerStatus

	writeMu sync.Mutex
	conn    *websocket.Conn

	statusMu    sync.Mutex
	statusTimer *time.Timer
	lastStatus  time.Time
}

func NewClient(cfg *config.Config, logger *telemetry.Logger,
	applySnapshot func(catalog.Snapshot),
	command func(player.Command) error,
	status func() player.ControllerStatus) *Client {
	return &Client{
		cfg:           cfg,
		logger:        logger,
		applySnapshot: applySnapshot,
		command:       command,
		status:        status,
		lastStatus:    time.Now(),
	}
}

// Run connects and serves the session until ctx is done, reconnecting on
// any transport failure.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		err := c.session(ctx)
		if errors.Is(err, ErrAuthRejected) || ctx.Err() != nil {
			return err
		}
		slog.Warn("control connection lost, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeLimit}
	conn, _, err := dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.ServerURL, err)
	}
	defer conn.Close()

	if err := c.authenticate(conn); err != nil {
		return err
	}
	slog.Info("control channel connected", "server", c.cfg.ServerURL)

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
	}()

	c.logger.SetSender(c.sendLogs)

	// Close the socket when ctx ends so the read loop unblocks.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	return c.readLoop(conn)
}

// authenticate sends the credential frame and waits for the verdict. The
// credentials always go in the very first frame; everything after is
// enveloped.
func (c *Client) authenticate(conn *websocket.Conn) error {
	req := authRequest{
		Username:        c.cfg.Username,
		Password:        c.cfg.Password,
		ProtocolVersion: c.cfg.ProtocolVersion,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(handshakeLimit))
	var resp authResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if !resp.Success {
		slog.Error("authentication rejected", "reason", resp.Error)
		return ErrAuthRejected
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Type {
	case "data":
		var snap catalog.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			slog.Error("malformed data message", "err", err)
			return
		}
		go c.applySnapshot(snap)

	case "ack_log":
		var ack struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(env.Data, &ack); err != nil {
			slog.Error("malformed ack_log message", "err", err)
			return
		}
		c.logger.Ack(ack.IDs)

	case "command":
		var cmd player.Command
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			slog.Error("malformed command message", "err", err)
			return
		}
		if err := c.command(cmd); err != nil {
			slog.Warn("remote command failed", "command", cmd.Name, "err", err)
		}

	case "request_status":
		c.SendStatus()

	default:
		slog.Warn("unknown control message type", "type", env.Type)
	}
}

// sendLogs ships telemetry entries. Failures are silent; the periodic
// flush retries anything the server has not acknowledged.
func (c *Client) sendLogs(entries []telemetry.Entry) {
	data, err := json.Marshal(struct {
		Logs []telemetry.Entry `json:"logs"`
	}{Logs: entries})
	if err != nil {
		slog.Error("could not marshal telemetry", "err", err)
		return
	}
	if err := c.write(envelope{Type: "log", Data: data}); err != nil {
		slog.Debug("could not send telemetry, will retry", "err", err)
	}
}

// NotifyStatus schedules a status push, coalescing bursts of player state
// changes into at most one push per throttle interval. Safe to call from
// playback callbacks.
func (c *Client) NotifyStatus() {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.statusTimer != nil {
		return
	}
	delay := statusThrottle - time.Since(c.lastStatus)
	if delay < 0 {
		delay = 0
	}
	c.statusTimer = time.AfterFunc(delay, func() {
		c.statusMu.Lock()
		c.statusTimer = nil
		c.lastStatus = time.Now()
		c.statusMu.Unlock()
		c.SendStatus()
	})
}

// SendStatus pushes the current player snapshot upstream.
func (c *Client) SendStatus() {
	data, err := json.Marshal(c.status())
	if err != nil {
		slog.Error("could not marshal status", "err", err)
		return
	}
	if err := c.write(envelope{Type: "status", Data: data}); err != nil {
		slog.Debug("could not send status", "err", err)
	}
}

func (c *Client) write(env envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(env)
}
