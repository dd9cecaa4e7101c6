package socket

import "github.com/hurdlab/pfinet/internal/captab"

// UserView is a client-facing capability over a shared [Socket]. Multiple
// user views may reference the same socket; the socket's stack descriptor
// closes exactly when the last user view's cleanup callback fires.
type UserView struct {
	Socket *Socket

	// IsRoot records whether the creating client had effective
	// superuser authentication at the time this view was made.
	IsRoot bool

	// NoInstall asks the capability table to skip registering this
	// view's port in the bucket's listening set, used for the transient
	// handoff during reauthenticate.
	NoInstall bool
}

// NewUserView constructs a user view over sock. Socket.AddUser must have
// already been called by the caller for views other than the first
// (socket-create and accept call [New], which seeds one reference; every
// subsequent duplicate/reauthenticate/restrict-auth must call
// Socket.AddUser itself before calling NewUserView).
func NewUserView(sock *Socket, isroot, noinstall bool) *UserView {
	return &UserView{Socket: sock, IsRoot: isroot, NoInstall: noinstall}
}

// Duplicate returns a new user view sharing the same socket with one more
// user-refcount, preserving isroot.
func (v *UserView) Duplicate() *UserView {
	v.Socket.AddUser()
	return NewUserView(v.Socket, v.IsRoot, false)
}

// RestrictAuth returns a new user view over the same socket with isroot
// set to matchesOwner, without contacting an authentication server.
func (v *UserView) RestrictAuth(matchesOwner bool) *UserView {
	v.Socket.AddUser()
	return NewUserView(v.Socket, matchesOwner, false)
}

// Cleanup is the class cleanup callback registered for the user-view
// class: it drops one reference from the underlying socket, releasing it
// when this was the last view.
func Cleanup(identityBucket *captab.Bucket) func(payload any) {
	return func(payload any) {
		view, ok := payload.(*UserView)
		if !ok {
			return
		}
		view.Socket.DropUser(identityBucket)
	}
}
