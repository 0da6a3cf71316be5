package cred

// Outcome is the discriminant of a Result.
type Outcome int

const (
	// OutcomeNone means no authentication was attempted.
	OutcomeNone Outcome = iota

	// OutcomeSuccess means the attempt produced at least an access token.
	OutcomeSuccess

	// OutcomeFailure means the authority affirmatively rejected the attempt.
	OutcomeFailure

	// OutcomeTwoFactor means the authority requires a second factor; the
	// caller must escalate to an OAuth flow. Not a failure.
	OutcomeTwoFactor
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTwoFactor:
		return "two-factor"
	default:
		return "unknown"
	}
}

// Result is the product of one authentication attempt.
//
// Callers switch on Outcome explicitly; there are no implicit boolean or
// enum conversions. Token fields are populated only for OutcomeSuccess.
type Result struct {
	Outcome        Outcome
	AccessToken    *Token
	RefreshToken   *Token
	RemoteUsername string
}

// Success builds a successful result. refreshToken and remoteUsername may
// be zero when the protocol does not supply them.
func Success(accessToken *Token, refreshToken *Token, remoteUsername string) Result {
	return Result{
		Outcome:        OutcomeSuccess,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		RemoteUsername: remoteUsername,
	}
}

// Failure builds a definite-rejection result.
func Failure() Result {
	return Result{Outcome: OutcomeFailure}
}

// TwoFactor builds a second-factor-required result.
func TwoFactor() Result {
	return Result{Outcome: OutcomeTwoFactor}
}

// None builds the no-attempt result.
func None() Result {
	return Result{Outcome: OutcomeNone}
}
