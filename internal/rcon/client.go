package rcon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/craftops/craftwatch/internal/logging"
)

// Endpoint identifies one RCON server. It is the immutable pooling key
// used by Manager.
type Endpoint struct {
	Host     string
	Port     int
	Password string
}

// Addr returns the host:port dial address.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ClientOptions tune a single client. Zero values fall back to defaults.
type ClientOptions struct {
	DialTimeout      time.Duration // default 10s
	IOTimeout        time.Duration // per-packet read/write deadline, default 10s
	ConnectCooldown  time.Duration // minimum gap between connect attempts, default 5s
	ReconnectRetries int           // bounded reconnect attempts, default 3
	BackoffBase      time.Duration // first reconnect delay, default 500ms
	BackoffCap       time.Duration // backoff ceiling, default 10s
}

func (o *ClientOptions) withDefaults() ClientOptions {
	opts := ClientOptions{}
	if o != nil {
		opts = *o
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 10 * time.Second
	}
	if opts.ConnectCooldown <= 0 {
		opts.ConnectCooldown = 5 * time.Second
	}
	if opts.ReconnectRetries <= 0 {
		opts.ReconnectRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 10 * time.Second
	}
	return opts
}

// Client owns one authenticated socket session. All public methods are
// serialized by the client mutex so concurrent commands queue in FIFO
// order instead of interleaving bytes on the wire.
type Client struct {
	endpoint Endpoint
	opts     ClientOptions
	logger   *slog.Logger

	mu          sync.Mutex
	conn        net.Conn
	requestID   int32
	connected   bool
	lastAttempt time.Time
}

// NewClient creates an unconnected client for the endpoint.
func NewClient(endpoint Endpoint, opts *ClientOptions) *Client {
	return &Client{
		endpoint: endpoint,
		opts:     opts.withDefaults(),
		logger:   logging.GetLogger("rcon").With("addr", endpoint.Addr()),
	}
}

// Connected reports whether the session is currently authenticated.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials and authenticates. A call inside the cooldown window
// returns (false, nil) without touching the network; this damps retry
// storms when the server is down and many callers poll.
func (c *Client) Connect() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return true, nil
	}
	if time.Since(c.lastAttempt) < c.opts.ConnectCooldown {
		return false, nil
	}
	if err := c.connectLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// connectLocked dials, authenticates and marks the session connected.
// Caller holds c.mu.
func (c *Client) connectLocked() error {
	c.closeLocked()
	c.lastAttempt = time.Now()

	conn, err := net.DialTimeout("tcp", c.endpoint.Addr(), c.opts.DialTimeout)
	if err != nil {
		return fmt.Errorf("rcon: dial %s: %w", c.endpoint.Addr(), err)
	}
	c.conn = conn

	c.requestID++
	authID := c.requestID
	if err := c.writePacket(authID, TypeAuth, c.endpoint.Password); err != nil {
		c.closeLocked()
		return err
	}

	resp, err := c.readPacket()
	if err != nil {
		c.closeLocked()
		return err
	}

	// The protocol signals a bad password with request id -1.
	if resp.ID == -1 {
		c.closeLocked()
		return ErrAuthFailed
	}

	c.connected = true
	c.logger.Debug("RCON session authenticated")
	return nil
}

// Command executes a console command, reconnecting automatically when
// the session is down or a transport error interrupts the exchange.
func (c *Client) Command(cmd string) (string, error) {
	return c.command(cmd, true)
}

// CommandOnce executes a command on the existing session only. It fails
// with ErrNotConnected instead of dialing.
func (c *Client) CommandOnce(cmd string) (string, error) {
	return c.command(cmd, false)
}

func (c *Client) command(cmd string, autoReconnect bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if !autoReconnect {
			return "", ErrNotConnected
		}
		if err := c.reconnectLocked(); err != nil {
			return "", err
		}
	}

	resp, err := c.exchangeLocked(cmd)
	if err == nil {
		return resp, nil
	}

	c.closeLocked()

	// Retry exactly once, and only for transport failures. Protocol
	// errors (bad auth, malformed frames) would just repeat.
	if autoReconnect && isTransportError(err) {
		c.logger.Warn("RCON command interrupted, retrying once", "error", err)
		if rerr := c.reconnectLocked(); rerr == nil {
			resp, retryErr := c.exchangeLocked(cmd)
			if retryErr == nil {
				return resp, nil
			}
			c.closeLocked()
			return "", retryErr
		}
	}

	return "", err
}

// reconnectLocked attempts bounded reconnects with exponential backoff.
// Caller holds c.mu; the cooldown does not apply here because backoff
// already paces the attempts.
func (c *Client) reconnectLocked() error {
	delay := c.opts.BackoffBase
	var lastErr error

	for attempt := 0; attempt < c.opts.ReconnectRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
			if delay > c.opts.BackoffCap {
				delay = c.opts.BackoffCap
			}
		}

		lastErr = c.connectLocked()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrAuthFailed) {
			// Retrying a rejected password cannot succeed.
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// exchangeLocked sends the command packet followed by the empty sentinel
// and reassembles the response. The sentinel's reply (request id + 1)
// marks the end of a multi-packet response; a packet carrying the
// original id is a single-packet reply. Caller holds c.mu.
func (c *Client) exchangeLocked(cmd string) (string, error) {
	id := c.requestID + 1
	sentinel := id + 1
	c.requestID = sentinel

	if err := c.writePacket(id, TypeExecCommand, cmd); err != nil {
		return "", err
	}
	if err := c.writePacket(sentinel, TypeExecCommand, ""); err != nil {
		return "", err
	}

	var parts []string
	for {
		pkt, err := c.readPacket()
		if err != nil {
			return "", err
		}

		switch pkt.ID {
		case id:
			parts = append(parts, pkt.Body)
			return strings.Join(parts, ""), nil
		case sentinel:
			return strings.Join(parts, ""), nil
		default:
			parts = append(parts, pkt.Body)
		}
	}
}

// Disconnect closes the socket. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// WithSession connects, runs fn and guarantees the socket is released on
// every exit path.
func (c *Client) WithSession(fn func(*Client) error) error {
	ok, err := c.Connect()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCooldown
	}
	defer c.Disconnect()
	return fn(c)
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

func (c *Client) writePacket(id, packetType int32, body string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.IOTimeout))
	if _, err := c.conn.Write(Encode(id, packetType, body)); err != nil {
		return wrapNetErr("write", err)
	}
	return nil
}

// readPacket reads one complete frame from the socket.
func (c *Client) readPacket() (Packet, error) {
	if c.conn == nil {
		return Packet{}, ErrNotConnected
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.IOTimeout))

	header := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return Packet{}, wrapNetErr("read size", err)
	}

	size := int(int32(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24))
	if size < packetOverhead || size > maxPacketSize {
		return Packet{}, fmt.Errorf("%w: size %d", ErrMalformedPacket, size)
	}

	frame := make([]byte, 4+size)
	copy(frame, header)
	if _, err := io.ReadFull(c.conn, frame[4:]); err != nil {
		return Packet{}, wrapNetErr("read payload", err)
	}

	return Decode(frame)
}

// wrapNetErr maps deadline misses to ErrTimeout and keeps everything
// else as a transport error.
func wrapNetErr(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("rcon: %s: %w", op, err)
}

// isTransportError reports whether the failure came from the socket
// rather than the protocol. Transport failures are worth one retry.
func isTransportError(err error) bool {
	return !errors.Is(err, ErrAuthFailed) &&
		!errors.Is(err, ErrMalformedPacket) &&
		!errors.Is(err, ErrNotConnected)
}
