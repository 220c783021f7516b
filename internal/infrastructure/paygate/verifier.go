package paygate

import "context"

// StaticVerifier accepts a single shared secret. It stands in for a real
// payment gateway so the lifecycle can be exercised end to end.
type StaticVerifier struct {
	secret string
}

func NewStaticVerifier(secret string) *StaticVerifier {
	return &StaticVerifier{secret: secret}
}

func (v *StaticVerifier) Verify(_ context.Context, _ string, credential string) bool {
	return credential == v.secret
}
