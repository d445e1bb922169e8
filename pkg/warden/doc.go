// Package warden enforces per-user usage policies on the client side.
//
// A Client keeps the usage a process records and the suspensions the
// Warden authority has issued in memory, so enforcing a policy never
// waits on the network. Background loops keep both in step with the
// authority:
//
//   - the push loop reports accumulated usage every minute
//   - the pull loop fetches active suspensions of every tracked policy
//   - the event server receives infractions pushed by the authority as
//     soon as they are recorded
//
// # Lifecycle
//
// A Client moves through Unregistered, Registering, Registered and
// Unregistering. Register logs in, reconciles the declared policies with
// the authority (creating missing ones, updating changed ones), seeds
// the suspension cache, starts the loops and the event server, and
// subscribes the event server. Unregister undoes that in reverse with
// bounded waits. A failed Register returns the client to Unregistered;
// policies already reconciled on the authority stay as they are.
//
// # Enforcement
//
//	err := client.ModifyMetric(policy, user, 1)
//	var suspended *warden.SuspendedError
//	if errors.As(err, &suspended) {
//	    // reject the request
//	}
//
// UpdateMetric and ModifyMetric first check the suspension cache and
// return a *SuspendedError without recording anything when the user is
// suspended. The check and the write are not atomic; a suspension that
// arrives in between applies to the next call.
package warden
