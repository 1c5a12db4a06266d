package model

import "time"

// State describes where the client sits on the connectivity ladder.
type State string

const (
	// StateOffline means the raw network is down.
	StateOffline State = "offline"

	// StateOnlineUnreachable means the network is up but the last probe
	// of the remote service failed.
	StateOnlineUnreachable State = "online_unreachable"

	// StateOnlineReachable means the network is up and the remote service
	// answered the last probe.
	StateOnlineReachable State = "online_reachable"
)

// ConnectivityStatus is the single shared view of connectivity. It is
// created once at process start with optimistic defaults and mutated only
// by the connectivity monitor.
type ConnectivityStatus struct {
	State State `json:"state"`

	// Online reflects raw network reachability.
	Online bool `json:"online"`

	// ServerReachable is nil until at least one probe has run.
	// Online=false forces it to false.
	ServerReachable *bool `json:"server_reachable"`

	LastCheckedAt time.Time `json:"last_checked_at"`
}

// Reachable reports whether the remote service is currently considered
// reachable. Unknown (never probed) counts as reachable while online, so
// a freshly started client attempts its first request optimistically.
func (s ConnectivityStatus) Reachable() bool {
	if !s.Online {
		return false
	}
	return s.ServerReachable == nil || *s.ServerReachable
}
