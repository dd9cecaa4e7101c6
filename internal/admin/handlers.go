package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/socket"
	"github.com/hurdlab/pfinet/internal/translator"
)

// errReloadNotSupported is reported when no ReloadFunc was installed.
var errReloadNotSupported = errors.New("reload not supported")

// handlers is the admin endpoints' receiver, a thin adapter between the
// HTTP surface and the translator's scoped state, the net/http analogue
// of internal/server/server.go's BFDServer.
type handlers struct {
	ctx      *translator.Context
	reloadFn ReloadFunc
	logger   *slog.Logger
}

// interfaceView is the JSON-serializable projection of an iface.Interface.
type interfaceView struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	MTU       int      `json:"mtu"`
	Flags     []string `json:"flags"`
	Addr      string   `json:"addr,omitempty"`
	Mask      string   `json:"mask,omitempty"`
	Gateway   string   `json:"gateway,omitempty"`
	Broadcast string   `json:"broadcast,omitempty"`
	V6        []string `json:"v6,omitempty"`
}

func kindName(k iface.DriverKind) string {
	switch k {
	case iface.DriverEthernet:
		return "ethernet"
	case iface.DriverTUN:
		return "tun"
	case iface.DriverLoopback:
		return "loopback"
	default:
		return "unknown"
	}
}

func flagNames(f iface.Flag) []string {
	var out []string
	for bit, name := range map[iface.Flag]string{
		iface.FlagUp:          "up",
		iface.FlagRunning:     "running",
		iface.FlagPointToPoint: "point-to-point",
		iface.FlagNoARP:       "no-arp",
		iface.FlagLoopback:    "loopback",
		iface.FlagBroadcast:   "broadcast",
	} {
		if f&bit != 0 {
			out = append(out, name)
		}
	}
	return out
}

func toInterfaceView(i *iface.Interface) interfaceView {
	v4 := i.V4()
	v := interfaceView{
		Name:  i.Name,
		Kind:  kindName(i.Kind),
		MTU:   i.MTU,
		Flags: flagNames(i.Flags()),
	}
	if !iface.IsSentinel(v4.Addr) {
		v.Addr = v4.Addr.String()
	}
	if !iface.IsSentinel(v4.Mask) {
		v.Mask = v4.Mask.String()
	}
	if !iface.IsSentinel(v4.Gateway) {
		v.Gateway = v4.Gateway.String()
	}
	if !iface.IsSentinel(v4.Broadcast) {
		v.Broadcast = v4.Broadcast.String()
	}
	for _, a := range i.V6Addrs() {
		v.V6 = append(v.V6, a.Addr.String())
	}
	return v
}

// listInterfaces reports every configured interface, loopback first
// (spec.md §3).
func (h *handlers) listInterfaces(w http.ResponseWriter, r *http.Request) {
	ifaces := h.ctx.Ifaces.List()
	out := make([]interfaceView, 0, len(ifaces))
	for _, i := range ifaces {
		out = append(out, toInterfaceView(i))
	}
	writeJSON(w, http.StatusOK, out)
}

// getInterface reports one interface by name.
func (h *handlers) getInterface(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	i, err := h.ctx.Ifaces.Lookup(name)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, toInterfaceView(i))
}

// socketView is the JSON-serializable projection of a socket.UserView.
type socketView struct {
	IsRoot      bool `json:"is_root"`
	NonBlocking bool `json:"non_blocking"`
	Closed      bool `json:"closed"`
}

// listSockets reports every live socket user-view in the translator's
// capability table.
func (h *handlers) listSockets(w http.ResponseWriter, r *http.Request) {
	payloads := h.ctx.SocketBk.Snapshot(nil)
	out := make([]socketView, 0, len(payloads))
	for _, p := range payloads {
		view, ok := p.(*socket.UserView)
		if !ok {
			continue
		}
		out = append(out, socketView{
			IsRoot:      view.IsRoot,
			NonBlocking: view.Socket.NonBlocking(),
			Closed:      view.Socket.Closed(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// captabStatsView reports the population of the translator's socket
// capability bucket.
type captabStatsView struct {
	SocketBucketObjects int `json:"socket_bucket_objects"`
}

func (h *handlers) captabStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, captabStatsView{
		SocketBucketObjects: h.ctx.SocketBk.Len(),
	})
}

// reload triggers a configuration reload (spec.md's SIGHUP analogue),
// returning 202 on success or 500 with the refusal reason.
func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	if h.reloadFn == nil {
		writeJSONError(w, http.StatusNotImplemented, errReloadNotSupported)
		return
	}
	if err := h.reloadFn(); err != nil {
		h.logger.ErrorContext(r.Context(), "reload failed", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
