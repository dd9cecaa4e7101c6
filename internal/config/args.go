package config

import (
	"fmt"
	"net/netip"

	"github.com/hurdlab/pfinet/internal/iface"
)

// ParsedArgs is the result of walking the translator's command-line
// mount arguments: one InterfaceSpec per -i group, plus the paths of any
// additional family-restricted control nodes requested via -4/-6
// (spec.md §6, grounded on original_source/options.c's
// parse_hook/parse_opt).
type ParsedArgs struct {
	Interfaces     []iface.InterfaceSpec
	Interface4Path string
	Interface6Path string
}

// ArgError reports a malformed command-line argument, mirroring
// options.c's argp_error/PERR behavior of naming the bad flag.
type ArgError struct {
	Flag string
	Err  error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("argument %s: %v", e.Flag, e.Err)
}

func (e *ArgError) Unwrap() error { return e.Err }

// ParseArgs walks argv applying the repeated-flag-group grammar:
//
//	-i NAME        select (or create) the interface slot NAME
//	-a [ADDR]      set the current slot's address (default 0.0.0.0/8 if no ADDR)
//	-m [MASK]      set the current slot's netmask
//	-p [PEER]      set the current slot's point-to-point peer (unused, accepted for parity)
//	-g [GATEWAY]   set the current slot's gateway
//	-A [ADDR6]     add an IPv6 address to the current slot
//	-4 PATH        bind an additional INET-only control node at PATH
//	-6 PATH        bind an additional INET6-only control node at PATH
//
// Every flag except -i and -4/-6 takes its argument from the next
// non-flag argv entry if one follows, exactly as argp_state lookahead in
// options.c; an omitted argument to -a, -m or -g resets that field to
// the sentinel instead of erroring, matching the original's case
// arg == NULL branches. -A with no argument adds nothing, and -p's
// argument is consumed and ignored. -4/-6 require their path argument, matching argp's required
// "PATH" metavar for --interface4/--interface6.
func ParseArgs(argv []string) (ParsedArgs, error) {
	var out ParsedArgs

	// Every option before the first -i configures the loopback interface
	// (matching original_source/options.c's parse_hook, which starts the
	// current device pointer at the loopback slot rather than nil), so
	// the loopback spec is pre-seeded as slot 0 and selected from the
	// start.
	specs := []iface.InterfaceSpec{{
		Name:      iface.LoopbackName,
		Addr:      netip.MustParseAddr("127.0.0.1"),
		Mask:      netip.MustParseAddr("255.0.0.0"),
		Gateway:   iface.SentinelV4,
		Broadcast: iface.SentinelV4,
	}}
	cur := 0 // index into specs of the currently-selected interface

	i := 0
	next := func() (string, bool) {
		if i < len(argv) && len(argv[i]) > 0 && argv[i][0] != '-' {
			v := argv[i]
			i++
			return v, true
		}
		return "", false
	}

	for i < len(argv) {
		tok := argv[i]
		i++

		switch tok {
		case "-i", "--interface":
			name, ok := next()
			if !ok {
				return out, &ArgError{Flag: "-i", Err: ErrMissingValue}
			}
			idx := findInterface(specs, name)
			if idx >= 0 {
				cur = idx
				continue
			}
			specs = append(specs, newEmptyInterfaceSpec(name))
			cur = len(specs) - 1

		case "-a", "--address":
			if arg, ok := next(); ok {
				addr, err := netip.ParseAddr(arg)
				if err != nil {
					return out, &ArgError{Flag: "-a", Err: err}
				}
				if addr.IsMulticast() {
					return out, &ArgError{Flag: "-a", Err: ErrMulticastNotAllowed}
				}
				specs[cur].Addr = addr
			} else {
				specs[cur].Addr = netip.MustParseAddr("0.0.0.0")
				specs[cur].Mask = netip.MustParseAddr("255.0.0.0")
				specs[cur].Gateway = iface.SentinelV4
			}

		case "-m", "--netmask":
			if arg, ok := next(); ok {
				addr, err := netip.ParseAddr(arg)
				if err != nil {
					return out, &ArgError{Flag: "-m", Err: err}
				}
				specs[cur].Mask = addr
			} else {
				specs[cur].Mask = iface.SentinelV4
			}

		case "-p", "--peer":
			// Point-to-point peer address is accepted for command-line
			// parity with the original but has no InterfaceSpec field —
			// pfinet's interface model has no point-to-point driver.
			next()

		case "-g", "--gateway":
			if arg, ok := next(); ok {
				addr, err := netip.ParseAddr(arg)
				if err != nil {
					return out, &ArgError{Flag: "-g", Err: err}
				}
				specs[cur].Gateway = addr
			} else {
				specs[cur].Gateway = iface.SentinelV4
			}

		case "-A", "--address6":
			if arg, ok := next(); ok {
				addr, err := netip.ParseAddr(arg)
				if err != nil {
					return out, &ArgError{Flag: "-A", Err: err}
				}
				if addr.IsMulticast() {
					return out, &ArgError{Flag: "-A", Err: ErrMulticastNotAllowed}
				}
				specs[cur].V6 = append(specs[cur].V6, addr)
			}

		case "-4", "--interface4":
			path, ok := next()
			if !ok {
				return out, &ArgError{Flag: "-4", Err: ErrMissingValue}
			}
			out.Interface4Path = path

		case "-6", "--interface6":
			path, ok := next()
			if !ok {
				return out, &ArgError{Flag: "-6", Err: ErrMissingValue}
			}
			out.Interface6Path = path

		default:
			return out, &ArgError{Flag: tok, Err: ErrUnknownFlag}
		}
	}

	out.Interfaces = specs
	return out, nil
}

func newEmptyInterfaceSpec(name string) iface.InterfaceSpec {
	return iface.InterfaceSpec{
		Name:      name,
		Addr:      iface.SentinelV4,
		Mask:      iface.SentinelV4,
		Gateway:   iface.SentinelV4,
		Broadcast: iface.SentinelV4,
	}
}

// findInterface returns the index of the spec already named name, or -1.
func findInterface(specs []iface.InterfaceSpec, name string) int {
	for idx := range specs {
		if specs[idx].Name == name {
			return idx
		}
	}
	return -1
}
