package payment

import "context"

// IDGenerator issues record identifiers and prefixed reference tokens.
type IDGenerator interface {
	NewID() string
	NewRef(prefix string) string
}

// CredentialVerifier is the stand-in for a real payment gateway. Correctness
// hardening of the credential check is out of scope; the port exists so the
// stand-in can be swapped without touching the lifecycle.
type CredentialVerifier interface {
	Verify(ctx context.Context, userID, credential string) bool
}
