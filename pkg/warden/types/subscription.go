package types

import (
	"net"
	"strconv"
)

// Subscription registers an address the authority pushes infractions to.
type Subscription struct {
	ID       *int64 `json:"id,omitempty"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

// Address returns the host:port the subscription points at.
func (s Subscription) Address() string {
	return net.JoinHostPort(s.Hostname, strconv.Itoa(s.Port))
}

// Credentials authenticate a client session.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
