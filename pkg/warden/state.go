package warden

// State is the registration state of a Client.
type State int32

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateUnregistering
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateUnregistering:
		return "unregistering"
	}
	return "unknown"
}
