package domain

import "time"

type Verifier interface {
	// Verify checks signature and expiry and returns the caller.
	Verify(token string) (Actor, error)
	// Issue signs a token for actor valid for ttl. Used by dev tooling and tests.
	Issue(actor Actor, ttl time.Duration) (string, error)
}
