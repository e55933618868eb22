package ports

// Verifier checks a signed message against the address that claims to have
// signed it. A non-nil error means the signature could not be evaluated.
type Verifier interface {
	Verify(message, address, signature string) (bool, error)
}
