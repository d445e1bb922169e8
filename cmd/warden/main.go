// Warden is an enforcing reverse proxy backed by the Warden policy
// authority.
//
// It registers the policies declared in a policy file with the authority,
// charges every matched request to the calling user and rejects requests
// from suspended users before they reach the upstream service.
//
// Usage:
//
//	# Start the proxy
//	warden run --config warden.yaml
//
//	# Check configuration and policy file
//	warden validate --config warden.yaml
//
//	# Reconcile declared policies once and print their IDs
//	warden policy sync
//
//	# Show the active suspensions of a user
//	warden user suspensions alice
package main

func main() {
	Execute()
}
