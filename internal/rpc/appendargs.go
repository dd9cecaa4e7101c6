// appendargs.go implements the runtime append-args query (spec.md §6,
// "Persistent state"): re-emit --interface/--address/--netmask/--gateway
// /--address6 for every non-sentinel configured value, so the current
// interface set can be dumped back as an equivalent argv.
package rpc

import (
	"fmt"

	"github.com/hurdlab/pfinet/internal/iface"
)

// AppendArgs walks the registry and emits the argv fragment that would
// reconstruct the current configuration, skipping the loopback interface
// (it is never passed on the command line) and any unset field.
func AppendArgs(reg *iface.Registry) []string {
	var args []string

	for _, i := range reg.List() {
		if i.Name == iface.LoopbackName {
			continue
		}

		args = append(args, fmt.Sprintf("--interface=%s", i.DeviceName))

		v4 := i.V4()
		if !iface.IsSentinel(v4.Addr) {
			args = append(args, fmt.Sprintf("--address=%s", v4.Addr))
		}
		if !iface.IsSentinel(v4.Mask) {
			args = append(args, fmt.Sprintf("--netmask=%s", v4.Mask))
		}
		if !iface.IsSentinel(v4.Gateway) {
			args = append(args, fmt.Sprintf("--gateway=%s", v4.Gateway))
		}
		for _, v6 := range i.V6Addrs() {
			args = append(args, fmt.Sprintf("--address6=%s", v6.Addr))
		}
	}

	return args
}
