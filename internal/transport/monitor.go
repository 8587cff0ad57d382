package transport

import (
	"context"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog"
)

// Monitor watches udev netlink events for the configured USB printer and
// drops the connection handle when the device detaches, so the next send
// reopens it instead of writing into a dead file descriptor.
type Monitor struct {
	device string
	log    zerolog.Logger
	conn   *Conn

	mu      sync.Mutex
	ueconn  *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor returns nil when the transport is not USB; serial ports have
// no udev hotplug story worth watching.
func NewMonitor(cfg Config, conn *Conn, log zerolog.Logger) *Monitor {
	if cfg.Mode != ModeUSB || cfg.Device == "" {
		return nil
	}
	return &Monitor{
		device: cfg.Device,
		log:    log.With().Str("component", "udev-monitor").Logger(),
		conn:   conn,
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	ueconn := new(netlink.UEventConn)
	if err := ueconn.Connect(netlink.UdevEvent); err != nil {
		// Non-fatal: sends still work, stale handles just fail and reopen.
		m.log.Warn().Err(err).Msg("netlink unavailable, hotplug detection disabled")
		return nil
	}

	m.ueconn = ueconn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, quit)

	m.log.Info().Str("device", m.device).Msg("hotplug monitor started")
	return nil
}

func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	_ = m.ueconn.Close()
	m.ueconn = nil
	m.running = false
}

func (m *Monitor) loop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	ueconn := m.ueconn
	m.mu.Unlock()
	if ueconn == nil {
		return
	}

	monitorQuit := ueconn.Monitor(queue, errs, m.matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handle(uevent)
		case err := <-errs:
			m.log.Warn().Err(err).Msg("netlink monitor error")
		}
	}
}

func (m *Monitor) matcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "usbmisc",
		},
	})
	return rules
}

func (m *Monitor) handle(uevent netlink.UEvent) {
	name := uevent.Env["DEVNAME"]
	if name == "" {
		return
	}
	if !strings.HasPrefix(name, "/dev/") {
		name = "/dev/" + name
	}
	if name != m.device {
		return
	}

	switch uevent.Action {
	case netlink.REMOVE:
		m.log.Warn().Str("device", name).Msg("printer detached")
		if m.conn != nil {
			m.conn.Drop()
		}
	case netlink.ADD:
		m.log.Info().Str("device", name).Msg("printer attached")
	}
}
