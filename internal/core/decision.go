package core

// Effect is the outcome class of a policy evaluation.
type Effect string

const (
	EffectAllow     Effect = "allow"
	EffectChallenge Effect = "challenge"
	EffectDeny      Effect = "deny"
)

// Reason is a short machine-readable code explaining a decision.
type Reason string

const (
	ReasonOutsideBusinessHours Reason = "outside_business_hours"
	ReasonMissingDevice        Reason = "missing_device"
	ReasonUntrustedDevice      Reason = "untrusted_device"
	ReasonHighRisk             Reason = "high_risk"
	ReasonMFARequired          Reason = "mfa_required"
	ReasonAdminRole            Reason = "admin_role"
	ReasonWithinPolicy         Reason = "within_policy"
)

// Decision is the closed allow/challenge/deny outcome of one evaluation.
// Decisions are produced fresh per request and never cached: the context
// (time, path) changes continuously.
type Decision struct {
	Effect Effect `json:"effect"`
	Reason Reason `json:"reason"`
}

func Allow(reason Reason) Decision {
	return Decision{Effect: EffectAllow, Reason: reason}
}

func Challenge(reason Reason) Decision {
	return Decision{Effect: EffectChallenge, Reason: reason}
}

func Deny(reason Reason) Decision {
	return Decision{Effect: EffectDeny, Reason: reason}
}

// Allowed reports whether the decision grants access outright.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}
