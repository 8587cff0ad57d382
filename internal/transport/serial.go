package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// openSerial opens the named serial port in 8N1 at the configured baud.
func openSerial(device string, baud int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, device, err)
	}
	return port, nil
}
