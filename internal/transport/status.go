package transport

import (
	"fmt"
	"time"
)

// TSPL status query: ESC ! ? returns four status bytes.
const (
	statusCommand        = "\x1b!?"
	statusResponseLength = 4
)

var printerStateMap = map[byte]string{
	'@': "normal",
	'F': "feeding",
	'P': "paused",
	'E': "error",
	'H': "head_open",
	'S': "standby",
	'L': "label_waiting",
	'I': "idle",
}

var errorMap = map[byte]string{
	'@': "none",
	'A': "head_overheat",
	'B': "motor_overheat",
	'C': "head_and_motor_overheat",
	'D': "head_error",
	'E': "cutter_error",
	'F': "rtc_error",
}

var mediaErrorMap = map[byte]string{
	'@': "none",
	'A': "paper_empty",
	'B': "ribbon_empty",
	'C': "paper_and_ribbon_empty",
	'D': "takeup_reel_full",
	'`': "head_open",
}

type Status struct {
	Raw          [4]byte
	PrinterState string
	Error        string
	MediaError   string
}

func parseStatus(response []byte) Status {
	s := Status{Raw: [4]byte{response[0], response[1], response[2], response[3]}}

	s.PrinterState = lookup(printerStateMap, response[0])
	s.Error = lookup(errorMap, response[2])
	s.MediaError = lookup(mediaErrorMap, response[3])
	return s
}

func lookup(m map[byte]string, b byte) string {
	if v, ok := m[b]; ok {
		return v
	}
	return "unknown"
}

// PrinterStatus queries the device for its current state. Only meaningful
// on readable ports; write-only lp devices time out.
func (c *Conn) PrinterStatus() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		port, err := c.open()
		if err != nil {
			return Status{}, err
		}
		c.port = port
	}
	return c.queryStatusLocked()
}

// queryStatusLocked asks the printer for its status after a send and treats
// a reported fault as the acknowledgement failing. A port that answers with
// fewer than four bytes before the timeout is treated as unacknowledged.
func (c *Conn) queryStatusLocked() (Status, error) {
	port := c.port
	if port == nil {
		return Status{}, fmt.Errorf("%w: connection lost before acknowledgement", ErrDeviceError)
	}

	type result struct {
		status Status
		err    error
	}
	done := make(chan result, 1)

	go func() {
		if _, err := port.Write([]byte(statusCommand)); err != nil {
			done <- result{err: err}
			return
		}
		buf := make([]byte, statusResponseLength)
		total := 0
		for total < statusResponseLength {
			n, err := port.Read(buf[total:])
			if err != nil {
				done <- result{err: err}
				return
			}
			total += n
		}
		done <- result{status: parseStatus(buf)}
	}()

	timer := time.NewTimer(c.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			_ = c.closePortLocked()
			return Status{}, fmt.Errorf("%w: status query failed: %v", ErrDeviceError, r.err)
		}
		if r.status.Error != "none" || r.status.MediaError != "none" {
			return r.status, fmt.Errorf("%w: printer reports %s/%s",
				ErrDeviceError, r.status.Error, r.status.MediaError)
		}
		return r.status, nil
	case <-timer.C:
		_ = c.closePortLocked()
		return Status{}, fmt.Errorf("%w: no status reply within %s", ErrSendTimeout, c.cfg.SendTimeout)
	}
}
