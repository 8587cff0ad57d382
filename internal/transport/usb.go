package transport

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// openUSB opens a usblp character device (e.g. /dev/usb/lp0). The kernel
// usblp driver accepts raw TSPL writes directly.
func openUSB(device string) (io.ReadWriteCloser, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		// Some usblp nodes refuse read access; printing only needs writes.
		f, err = os.OpenFile(device, os.O_WRONLY, 0)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, device)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, device, err)
	}
	return f, nil
}
