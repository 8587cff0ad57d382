package transport

import (
	"sort"
	"strings"
	"time"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
	"go.bug.st/serial"
)

// Device is a candidate printer endpoint found on the system.
type Device struct {
	Mode   Mode   `json:"mode"`
	Path   string `json:"path"`
	Vendor string `json:"vendor,omitempty"`
}

// DiscoverUSB crawls sysfs via udev for usblp character devices.
func DiscoverUSB(scanWindow time.Duration) ([]Device, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error)
	quit := crawler.ExistingDevices(queue, errs, usblpMatcher())
	defer close(quit)

	if scanWindow <= 0 {
		scanWindow = 2 * time.Second
	}
	deadline := time.NewTimer(scanWindow)
	defer deadline.Stop()

	var devices []Device
	for {
		select {
		case dev := <-queue:
			name := dev.Env["DEVNAME"]
			if name == "" {
				continue
			}
			if !strings.HasPrefix(name, "/dev/") {
				name = "/dev/" + name
			}
			if !strings.HasPrefix(name, "/dev/usb/lp") {
				continue
			}
			devices = append(devices, Device{
				Mode:   ModeUSB,
				Path:   name,
				Vendor: dev.Env["ID_VENDOR"],
			})
		case err := <-errs:
			return devices, err
		case <-deadline.C:
			sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
			return devices, nil
		}
	}
}

// DiscoverSerial lists the serial ports known to the OS.
func DiscoverSerial() ([]Device, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	sort.Strings(ports)
	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, Device{Mode: ModeSerial, Path: p})
	}
	return devices, nil
}

func usblpMatcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "usbmisc",
		},
	})
	return rules
}
