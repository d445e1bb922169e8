package types

import "fmt"

// IndefiniteExpiration marks a suspension that lasts until it is lifted
// on the authority.
const IndefiniteExpiration int64 = -1

// Infraction records a policy violation by a user.
type Infraction struct {
	ID       *int64 `json:"id,omitempty"`
	PolicyID int64  `json:"policyId"`
	UserID   *int64 `json:"userId,omitempty"`
	Username string `json:"username"`

	// InfractionTimestamp is when the violation was detected (epoch ms).
	InfractionTimestamp int64 `json:"infractionTimestamp"`

	// ExpirationTimestamp is nil when the infraction did not suspend the
	// user, IndefiniteExpiration for an open-ended suspension, and the end
	// of the suspension otherwise (epoch ms).
	ExpirationTimestamp *int64 `json:"expirationTimestamp"`

	// Value is the metric value observed when the violation was detected.
	Value float64 `json:"value"`
}

// Key returns the cache key of the infraction.
func (i *Infraction) Key() Key {
	return Key{PolicyID: i.PolicyID, User: i.Username}
}

// Expiration returns the expiration timestamp and whether one is set.
func (i *Infraction) Expiration() (int64, bool) {
	if i.ExpirationTimestamp == nil {
		return 0, false
	}
	return *i.ExpirationTimestamp, true
}

// IsIndefinite reports whether the suspension never expires on its own.
func (i *Infraction) IsIndefinite() bool {
	exp, ok := i.Expiration()
	return ok && exp == IndefiniteExpiration
}

// IsSuspendedAt reports whether the infraction suspends its user at nowMillis.
// A suspension ending exactly at nowMillis is still in force.
func (i *Infraction) IsSuspendedAt(nowMillis int64) bool {
	exp, ok := i.Expiration()
	if !ok {
		return false
	}
	return exp == IndefiniteExpiration || exp >= nowMillis
}

// ExpiredAt reports whether a timed suspension is over at nowMillis. Entries
// without a suspension and indefinite suspensions never expire.
func (i *Infraction) ExpiredAt(nowMillis int64) bool {
	exp, ok := i.Expiration()
	return ok && exp > 0 && exp < nowMillis
}

func (i *Infraction) String() string {
	exp := "none"
	if e, ok := i.Expiration(); ok {
		exp = fmt.Sprint(e)
	}
	return fmt.Sprintf("infraction{policy=%d user=%s expires=%s value=%g}", i.PolicyID, i.Username, exp, i.Value)
}

// Int64 returns a pointer to v, for building optional fields.
func Int64(v int64) *int64 {
	return &v
}
