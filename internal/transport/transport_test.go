package transport

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePort struct {
	writeDelay time.Duration
	writeErr   error
	closed     chan struct{}
	wrote      [][]byte
}

func newFakePort(delay time.Duration, err error) *fakePort {
	return &fakePort{writeDelay: delay, writeErr: err, closed: make(chan struct{})}
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeDelay > 0 {
		select {
		case <-time.After(p.writeDelay):
		case <-p.closed:
			return 0, io.ErrClosedPipe
		}
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.wrote = append(p.wrote, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) { return 0, io.EOF }

func (p *fakePort) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func testConn(t *testing.T, cfg Config, ports ...*fakePort) *Conn {
	t.Helper()
	i := 0
	open := func() (io.ReadWriteCloser, error) {
		if i >= len(ports) {
			t.Fatalf("opener called %d times, only %d ports scripted", i+1, len(ports))
		}
		p := ports[i]
		i++
		return p, nil
	}
	conn, err := connect(cfg, zerolog.Nop(), open)
	if err != nil {
		t.Fatalf("connect returned error: %v", err)
	}
	return conn
}

func fastConfig(retries int) Config {
	return Config{
		Mode:        ModeUSB,
		Device:      "/dev/usb/lp0",
		SendTimeout: 20 * time.Millisecond,
		Retries:     retries,
	}
}

func TestSendWritesFrame(t *testing.T) {
	port := newFakePort(0, nil)
	conn := testConn(t, fastConfig(2), port)

	frame := []byte("SIZE 50 mm,30 mm\nPRINT 1,1\n")
	if err := conn.Send(context.Background(), frame); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(port.wrote) != 1 || string(port.wrote[0]) != string(frame) {
		t.Fatalf("frame not written verbatim: %q", port.wrote)
	}
}

func TestStateFollowsTransmission(t *testing.T) {
	port := newFakePort(0, nil)
	conn := testConn(t, fastConfig(0), port)

	if got := conn.State(); got != StateIdle {
		t.Fatalf("state after connect = %q, want %q", got, StateIdle)
	}
	if err := conn.Send(context.Background(), []byte("CLS\n")); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got := conn.State(); got != StateSent {
		t.Fatalf("state after send = %q, want %q", got, StateSent)
	}

	conn.Drop()
	if got := conn.State(); got != StateIdle {
		t.Fatalf("state after drop = %q, want %q", got, StateIdle)
	}
}

func TestStateFailedAfterTimeout(t *testing.T) {
	port := newFakePort(time.Second, nil)
	conn := testConn(t, fastConfig(0), port)

	if err := conn.Send(context.Background(), []byte("CLS\n")); !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("expected ErrSendTimeout, got %v", err)
	}
	if got := conn.State(); got != StateFailed {
		t.Fatalf("state after timeout = %q, want %q", got, StateFailed)
	}
}

func TestSendTimesOut(t *testing.T) {
	port := newFakePort(time.Second, nil)
	conn := testConn(t, fastConfig(0), port)

	err := conn.Send(context.Background(), []byte("CLS\n"))
	if !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("expected ErrSendTimeout, got %v", err)
	}
}

func TestSendDeviceErrorNotRetried(t *testing.T) {
	port := newFakePort(0, errors.New("io failure"))
	conn := testConn(t, fastConfig(2), port)

	attempts, err := conn.SendWithRetry(context.Background(), []byte("CLS\n"), nil)
	if !errors.Is(err, ErrDeviceError) {
		t.Fatalf("expected ErrDeviceError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("device errors must not be retried, got %d attempts", attempts)
	}
}

func TestRetryBudgetReachesSent(t *testing.T) {
	// Times out twice, succeeds on the third attempt with retries=2.
	slow1 := newFakePort(time.Second, nil)
	slow2 := newFakePort(time.Second, nil)
	good := newFakePort(0, nil)
	conn := testConn(t, fastConfig(2), slow1)
	conn.port = nil // force reopen on first attempt so the script covers all three
	conn.open = scriptedOpener(slow1, slow2, good)

	var observed []int
	attempts, err := conn.SendWithRetry(context.Background(), []byte("CLS\n"), func(n int, err error) {
		observed = append(observed, n)
	})
	if err != nil {
		t.Fatalf("SendWithRetry returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(observed) != 2 {
		t.Fatalf("expected 2 failed attempts observed, got %v", observed)
	}
	if len(good.wrote) != 1 {
		t.Fatalf("final attempt did not write the frame")
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	slow1 := newFakePort(time.Second, nil)
	slow2 := newFakePort(time.Second, nil)
	conn := testConn(t, fastConfig(1), slow1)
	conn.port = nil
	conn.open = scriptedOpener(slow1, slow2)

	attempts, err := conn.SendWithRetry(context.Background(), []byte("CLS\n"), nil)
	if !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("expected ErrSendTimeout after exhausting retries, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("retries=1 means two attempts, got %d", attempts)
	}
}

func scriptedOpener(ports ...*fakePort) opener {
	i := 0
	return func() (io.ReadWriteCloser, error) {
		if i >= len(ports) {
			return nil, errors.New("opener script exhausted")
		}
		p := ports[i]
		i++
		return p, nil
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Mode: ModeSerial, Device: "/dev/ttyUSB0", BaudRate: 9600, SendTimeout: time.Second}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []Config{
		{Mode: "tcp", Device: "x", BaudRate: 9600, SendTimeout: time.Second},
		{Mode: ModeUSB, Device: "", SendTimeout: time.Second},
		{Mode: ModeSerial, Device: "/dev/ttyUSB0", BaudRate: 0, SendTimeout: time.Second},
		{Mode: ModeUSB, Device: "/dev/usb/lp0", SendTimeout: 0},
		{Mode: ModeUSB, Device: "/dev/usb/lp0", SendTimeout: time.Second, Retries: -1},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}

func TestParseStatusFault(t *testing.T) {
	s := parseStatus([]byte{'@', '@', 'A', '@'})
	if s.Error != "head_overheat" {
		t.Fatalf("unexpected error decode: %q", s.Error)
	}
	s = parseStatus([]byte{'@', '@', '@', 'A'})
	if s.MediaError != "paper_empty" {
		t.Fatalf("unexpected media error decode: %q", s.MediaError)
	}
	s = parseStatus([]byte{'@', '@', '@', '@'})
	if s.Error != "none" || s.MediaError != "none" {
		t.Fatalf("healthy status misdecoded: %+v", s)
	}
}
