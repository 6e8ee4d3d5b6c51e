package validation

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/engine"
)

// CompileRules validates configured policy rules and compiles their
// expressions. Invalid rules fail startup, not evaluation.
func CompileRules(rules []engine.Rule) ([]engine.Rule, error) {
	seenNames := make(map[string]struct{})
	var out []engine.Rule

	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule #%d missing name", i)
		}
		if _, exists := seenNames[rule.Name]; exists {
			return nil, fmt.Errorf("rule name '%s' is not unique", rule.Name)
		}
		seenNames[rule.Name] = struct{}{}

		switch rule.Effect {
		case core.EffectDeny, core.EffectChallenge:
		case core.EffectAllow:
			return nil, fmt.Errorf("rule '%s' has effect 'allow'; configured rules may only deny or challenge", rule.Name)
		default:
			return nil, fmt.Errorf("rule '%s' has invalid effect '%s'", rule.Name, rule.Effect)
		}
		if rule.Reason == "" {
			return nil, fmt.Errorf("rule '%s' missing reason code", rule.Name)
		}
		if rule.Expr == "" {
			return nil, fmt.Errorf("rule '%s' missing expr", rule.Name)
		}

		compiled, err := expr.Compile(rule.Expr,
			expr.AsBool(),
			expr.Env(engine.ExprEnv(core.ClaimSet{}, core.RequestContext{})),
		)
		if err != nil {
			return nil, fmt.Errorf("compiling expr for rule '%s': %w", rule.Name, err)
		}
		rule.Compiled = compiled

		out = append(out, rule)
	}

	return out, nil
}

// ValidateRegistry checks a principal list for config mistakes and returns
// it keyed by name.
func ValidateRegistry(principals []core.Principal) (core.Registry, error) {
	registry := make(core.Registry, len(principals))
	for i, p := range principals {
		if p.Name == "" {
			return nil, fmt.Errorf("principal #%d has empty name", i)
		}
		if _, exists := registry[p.Name]; exists {
			return nil, fmt.Errorf("principal name '%s' is not unique", p.Name)
		}
		if p.Password == "" {
			return nil, fmt.Errorf("principal '%s' has empty password", p.Name)
		}
		if _, err := core.ParseRole(string(p.Role)); err != nil {
			return nil, fmt.Errorf("principal '%s': %w", p.Name, err)
		}
		registry[p.Name] = p
	}
	return registry, nil
}

// LoadLocation resolves a policy time zone name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone '%s': %w", name, err)
	}
	return loc, nil
}
