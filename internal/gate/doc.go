// Package gate is the sync gate: the one place access to the encrypted root
// is decided, performed and recorded.
//
// For every request the gate classifies the method (GET, HEAD and OPTIONS
// read; PUT, POST, PATCH and DELETE write, or admin when the target is a
// syft.pub.yaml; anything else is denied), asks the ACL evaluator, and
// appends exactly one access log entry before returning, whatever the
// outcome.
//
// Denied requests stop there: the key store and the encryption engine are
// never consulted. Allowed reads decrypt the stored envelope with the
// requester's own key, so ACL read access alone never reveals plaintext to an
// identity that is not a recipient. Allowed writes encrypt for the requested
// recipients (the writer by default) and register pending deliveries.
// Admin writes replace a rule file and reload the ACL snapshot.
//
// # Deliveries
//
// Writes never wait for recipients. The Tracker keeps a pending entry per
// recipient until the recipient confirms arrival; confirming is idempotent
// and Redeliver reports what is still outstanding.
//
// # HTTP
//
// Router serves /api/files/* with the caller identity in X-User-Email and
// write recipients as repeated ?recipient= parameters.
package gate
