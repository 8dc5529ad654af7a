package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"

	"github.com/ks888/fetctl/probe"
)

// Options is the options of the serial transport.
type Options struct {
	// Baud is the baud rate of the virtual COM port.
	Baud int
	// Patterns are the glob patterns of the device files the probes appear as.
	Patterns []string
}

// NewDefaultOptions returns the options the eZ-FET and MSP-FET firmware expect.
func NewDefaultOptions() Options {
	return Options{Baud: 460800, Patterns: []string{"/dev/ttyACM*"}}
}

// Transport opens the probe attached to the serial device, such as /dev/ttyACM0.
type Transport struct {
	Options Options
}

// NewTransport returns the serial transport.
func NewTransport(options Options) *Transport {
	return &Transport{Options: options}
}

// Open opens the device in the raw mode. The device is locked exclusively while the link is open,
// because the probe supports only one conversation per physical link.
func (t *Transport) Open(path string) (probe.Link, error) {
	lockFile, err := lockDevice(path)
	if err != nil {
		return nil, err
	}

	conn, err := term.Open(path, term.Speed(t.Options.Baud), term.RawMode)
	if err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	link := NewLink(conn)
	link.lock = lockFile
	return link, nil
}

// Interfaces implements probe.Enumerator. The interface locked by another process is disabled.
func (t *Transport) Interfaces() ([]probe.Interface, error) {
	var interfaces []probe.Interface
	for _, pattern := range t.Options.Patterns {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		sort.Strings(paths)

		for _, path := range paths {
			f, err := lockDevice(path)
			if err == nil {
				f.Close()
			}
			interfaces = append(interfaces, probe.Interface{Name: path, Enabled: err == nil})
		}
	}
	return interfaces, nil
}

func lockDevice(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%s is used by another process", path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return f, nil
}
