// Package engine evaluates access policy. The engine is a pure function of
// (claim set, request context, static policy): it holds no mutable state
// and may be called concurrently without coordination.
package engine

import (
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/perimetra/perimetra/internal/core"
)

// Rule is an optional configured policy rule evaluated between the
// mandatory gates and the sensitive-path branch. The expression sees the
// verified claims and the request context; if it evaluates to true, the
// rule's effect applies.
type Rule struct {
	Name   string      `yaml:"name" json:"name"`
	Expr   string      `yaml:"expr" json:"expr"`
	Effect core.Effect `yaml:"effect" json:"effect"`
	Reason core.Reason `yaml:"reason" json:"reason"`

	// Compiled holds the pre-compiled form of Expr.
	Compiled *vm.Program `yaml:"-" json:"-"`
}

// Policy is the static configuration the engine evaluates against.
// It is constructed once at startup and passed explicitly, never reached
// through ambient globals.
type Policy struct {
	// StartHour and EndHour bound the business-hours window [start, end)
	// in Location's local time.
	StartHour int
	EndHour   int
	Location  *time.Location

	// RegisteredDevices is the set of trusted device identifiers.
	RegisteredDevices map[string]struct{}

	// SensitivePrefixes marks path prefixes that require elevated trust.
	SensitivePrefixes []string

	// RiskThreshold is the score at or above which sensitive access is
	// denied for non-admins.
	RiskThreshold float64

	// Rules are optional configured rules, evaluated in order.
	Rules []Rule
}

// Engine evaluates requests against one fixed policy.
type Engine struct {
	policy Policy
}

func New(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Decide produces an allow/challenge/deny decision. Gate order is part of
// the contract:
//
//  1. business hours (every path, before anything else)
//  2. device trust
//  3. configured rules, first match wins
//  4. sensitive-path branch (admin / risk / step-up)
//  5. default allow
func (e *Engine) Decide(claims core.ClaimSet, reqCtx core.RequestContext) core.Decision {
	p := e.policy

	hour := reqCtx.Time.In(p.Location).Hour()
	if hour < p.StartHour || hour >= p.EndHour {
		return core.Deny(core.ReasonOutsideBusinessHours)
	}

	device := core.NormalizeDevice(claims.DeviceID)
	if device == "" {
		return core.Deny(core.ReasonMissingDevice)
	}
	if _, ok := p.RegisteredDevices[device]; !ok {
		return core.Deny(core.ReasonUntrustedDevice)
	}

	for _, rule := range p.Rules {
		if ruleMatches(rule, claims, reqCtx) {
			switch rule.Effect {
			case core.EffectDeny:
				return core.Deny(rule.Reason)
			case core.EffectChallenge:
				return core.Challenge(rule.Reason)
			}
		}
	}

	if e.sensitive(reqCtx.Path) {
		if claims.Role == core.RoleAdmin {
			return core.Allow(core.ReasonAdminRole)
		}
		if claims.RiskScore >= p.RiskThreshold {
			return core.Deny(core.ReasonHighRisk)
		}
		return core.Challenge(core.ReasonMFARequired)
	}

	return core.Allow(core.ReasonWithinPolicy)
}

func (e *Engine) sensitive(path string) bool {
	for _, prefix := range e.policy.SensitivePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func ruleMatches(rule Rule, claims core.ClaimSet, reqCtx core.RequestContext) bool {
	if rule.Compiled == nil {
		return false
	}
	out, err := expr.Run(rule.Compiled, ExprEnv(claims, reqCtx))
	if err != nil {
		log.Warn().Err(err).Msgf("error evaluating expression for rule '%s'", rule.Name)
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// ExprEnv is the environment rule expressions are evaluated in. Exposed so
// config validation compiles against the same shape. Values are plain
// strings and numbers so expressions stay simple to write.
func ExprEnv(claims core.ClaimSet, reqCtx core.RequestContext) map[string]any {
	return map[string]any{
		"subject": claims.Subject,
		"role":    string(claims.Role),
		"device":  claims.DeviceID,
		"risk":    claims.RiskScore,
		"path":    reqCtx.Path,
	}
}
