// Package types defines the records exchanged with the Warden authority.
//
// # Overview
//
// A Policy is a declared usage rule owned by a service. The authority
// assigns its identity and evaluates it on the policy's cron schedule,
// producing an Infraction whenever a user's aggregated usage trips the
// trigger. Infractions may carry a suspension, expressed through their
// expiration timestamp:
//
//   - nil: the infraction did not suspend the user
//   - positive: the user is suspended until that time (epoch milliseconds)
//   - IndefiniteExpiration (-1): the user is suspended until lifted
//
// Usage values and suspensions are cached client-side per Key, a
// (policy ID, user name) pair serialized as "policyId:userName".
//
// # Equality
//
// Policy.Equal compares the declarative content of two policies and
// ignores the identity and audit fields the authority fills in, which is
// what reconciliation needs to decide whether an update is required.
package types
