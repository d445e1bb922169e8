package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a cache entry: a user under one policy.
type Key struct {
	PolicyID int64
	User     string
}

// NewKey builds a key for a reconciled policy.
func NewKey(p *Policy, user string) (Key, error) {
	id, ok := p.PolicyID()
	if !ok {
		return Key{}, fmt.Errorf("policy %s has no id", p)
	}
	return Key{PolicyID: id, User: user}, nil
}

// String serializes the key as "policyId:userName".
func (k Key) String() string {
	return strconv.FormatInt(k.PolicyID, 10) + ":" + k.User
}

// ParseKey parses a serialized key. Policy IDs are numeric, so the first
// colon separates the parts and user names may contain colons.
func ParseKey(s string) (Key, error) {
	idPart, user, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("key %q: missing separator", s)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("key %q: invalid policy id: %w", s, err)
	}
	if user == "" {
		return Key{}, fmt.Errorf("key %q: empty user", s)
	}
	return Key{PolicyID: id, User: user}, nil
}

// MarshalText implements encoding.TextMarshaler so keys can be JSON map keys.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
