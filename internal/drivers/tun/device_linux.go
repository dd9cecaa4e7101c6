//go:build linux

package tun

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	devNetTun = "/dev/net/tun"

	// IFF_TUN|IFF_NO_PI is the flags word OpenNode stores in the
	// unix.Ifreq passed to TUNSETIFF.
	iffTUN   = 0x0001
	iffNoPI  = 0x1000
	tunSetIf = 0x400454ca // TUNSETIFF
)

// DevicePath derives the device node path from a user-supplied interface
// name (spec.md §4.F Initialization): a bare name becomes /dev/<name>; a
// name already containing a slash is used verbatim.
func DevicePath(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "/dev/" + name
}

// OpenNode opens /dev/net/tun and attaches it to the given interface name
// via TUNSETIFF, returning the backing *os.File for client read/write.
// This is the Linux realization of "create a filesystem-translator
// control object bound to that node" — on Linux the kernel already
// multiplexes /dev/net/tun into per-interface queues, so no translator
// node is created; the returned file IS the control object.
func OpenNode(ifName string) (*os.File, error) {
	f, err := os.OpenFile(devNetTun, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devNetTun, err)
	}

	ifr, err := unix.NewIfreq(ifName)
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("ifreq %s: %w", ifName, err)
	}
	ifr.SetUint16(iffTUN | iffNoPI)

	if err := unix.IoctlIfreq(int(f.Fd()), tunSetIf, ifr); err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("TUNSETIFF %s: %w", ifName, err)
	}

	return f, nil
}
