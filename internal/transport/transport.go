package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPrinterNotFound = errors.New("printer not found")
	ErrPortUnavailable = errors.New("port unavailable")
	ErrSendTimeout     = errors.New("send timed out")
	ErrDeviceError     = errors.New("device error")
)

type Mode string

const (
	ModeUSB    Mode = "usb"
	ModeSerial Mode = "serial"
)

// State tracks the connection through a transmission: Idle -> Connecting ->
// Sending -> Sent | Failed. Conn.State reports the current value.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSending    State = "sending"
	StateSent       State = "sent"
	StateFailed     State = "failed"
)

const (
	DefaultBaudRate    = 9600
	DefaultSendTimeout = 5 * time.Second
	DefaultRetries     = 2
	DefaultUSBDevice   = "/dev/usb/lp0"
)

type Config struct {
	Mode        Mode          `yaml:"mode" json:"mode"`
	Device      string        `yaml:"device" json:"device"`
	BaudRate    int           `yaml:"baud_rate" json:"baud_rate"`
	SendTimeout time.Duration `yaml:"send_timeout" json:"send_timeout"`
	Retries     int           `yaml:"retries" json:"retries"`

	// QueryStatus enables the TSPL status query after each send on
	// readable ports. Write-only lp devices cannot answer it.
	QueryStatus bool `yaml:"query_status" json:"query_status"`
}

func (c Config) Validate() error {
	if c.Mode != ModeUSB && c.Mode != ModeSerial {
		return fmt.Errorf("connection mode must be usb or serial, got %q", c.Mode)
	}
	if c.Device == "" {
		return fmt.Errorf("printer device path is required")
	}
	if c.Mode == ModeSerial && c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", c.BaudRate)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send timeout must be positive, got %s", c.SendTimeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retry count must be non-negative, got %d", c.Retries)
	}
	return nil
}

type opener func() (io.ReadWriteCloser, error)

// Conn is the single owned connection handle to the printer. All sends
// serialize on its mutex; no job may interleave its frame with another's.
type Conn struct {
	cfg  Config
	log  zerolog.Logger
	open opener

	mu   sync.Mutex
	port io.ReadWriteCloser

	// stateMu guards state separately so State never blocks behind an
	// in-flight send holding mu.
	stateMu sync.Mutex
	state   State
}

// Connect opens the configured USB or serial transport.
func Connect(cfg Config, log zerolog.Logger) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortUnavailable, err)
	}

	var open opener
	switch cfg.Mode {
	case ModeUSB:
		open = func() (io.ReadWriteCloser, error) { return openUSB(cfg.Device) }
	case ModeSerial:
		open = func() (io.ReadWriteCloser, error) { return openSerial(cfg.Device, cfg.BaudRate) }
	}

	return connect(cfg, log, open)
}

func connect(cfg Config, log zerolog.Logger, open opener) (*Conn, error) {
	port, err := open()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("mode", string(cfg.Mode)).
		Str("device", cfg.Device).
		Msg("printer connected")

	return &Conn{cfg: cfg, log: log, open: open, port: port, state: StateIdle}, nil
}

// State reports where the last transmission got to. Sending means a frame
// is in flight right now.
func (c *Conn) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closePortLocked()
}

func (c *Conn) closePortLocked() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}

// Drop discards the current handle so the next send reopens the device.
// Used by the hotplug monitor when the printer detaches.
func (c *Conn) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.closePortLocked()
	c.setState(StateIdle)
}

// Send writes one framed transmission and waits for completion or the
// configured timeout. One attempt; no retry.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ctx, frame)
}

func (c *Conn) sendLocked(ctx context.Context, frame []byte) error {
	if c.port == nil {
		c.setState(StateConnecting)
		port, err := c.open()
		if err != nil {
			c.setState(StateFailed)
			return err
		}
		c.port = port
	}
	c.setState(StateSending)

	done := make(chan error, 1)
	port := c.port
	go func() {
		_, err := port.Write(frame)
		done <- err
	}()

	timer := time.NewTimer(c.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			_ = c.closePortLocked()
			c.setState(StateFailed)
			return fmt.Errorf("%w: %v", ErrDeviceError, err)
		}
	case <-timer.C:
		// The blocked writer holds the stale handle; closing it unblocks
		// the write and forces a reopen on the next attempt.
		_ = c.closePortLocked()
		c.setState(StateFailed)
		return fmt.Errorf("%w: no acknowledgement within %s", ErrSendTimeout, c.cfg.SendTimeout)
	case <-ctx.Done():
		_ = c.closePortLocked()
		c.setState(StateFailed)
		return fmt.Errorf("send aborted: %w", ctx.Err())
	}

	if c.cfg.QueryStatus {
		if _, err := c.queryStatusLocked(); err != nil {
			c.setState(StateFailed)
			return err
		}
	}
	c.setState(StateSent)
	return nil
}

// SendWithRetry applies the retry policy: only SendTimeout is retried, up
// to the configured budget. Returns the number of attempts made; onAttempt,
// if set, observes each failed attempt.
func (c *Conn) SendWithRetry(ctx context.Context, frame []byte, onAttempt func(attempt int, err error)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempts := 0
	for {
		attempts++
		err := c.sendLocked(ctx, frame)
		if err == nil {
			return attempts, nil
		}

		if onAttempt != nil {
			onAttempt(attempts, err)
		}

		if !errors.Is(err, ErrSendTimeout) || attempts > c.cfg.Retries {
			return attempts, err
		}

		c.log.Warn().
			Int("attempt", attempts).
			Int("retries", c.cfg.Retries).
			Err(err).
			Msg("send timed out, retrying")
	}
}
