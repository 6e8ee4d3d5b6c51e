package token

// Kind classifies a verification failure. Callers branch on the kind, not
// on error message text: the reason decides whether a client should log in
// again, escalate, or stop.
type Kind string

const (
	BadSignature      Kind = "bad_signature"
	Expired           Kind = "expired"
	MalformedClaims   Kind = "malformed_claims"
	AlgorithmMismatch Kind = "algorithm_mismatch"
	WrongKind         Kind = "wrong_token_kind"
)

// VerifyError is the single error type returned by Codec.Verify. Every
// failure maps to exactly one Kind.
type VerifyError struct {
	Kind  Kind
	cause error
}

func verifyErr(kind Kind, cause error) *VerifyError {
	return &VerifyError{Kind: kind, cause: cause}
}

func (e *VerifyError) Error() string {
	return string(e.Kind) + ": " + e.cause.Error()
}

func (e *VerifyError) Unwrap() error {
	return e.cause
}
