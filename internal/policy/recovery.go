// Package policy decides what a terminally failed checkout offers the user
// next: a retry entry (a brand-new session), a return to the catalog, or an
// escalation to support. Rules are expression-driven so business owners can
// change recovery behavior per failure code without touching control flow.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// RecoveryDecision is the outcome of evaluating the recovery rules for a
// failed checkout.
type RecoveryDecision struct {
	OfferRetry      bool `json:"offerRetry"`      // show the "re-enter checkout" action
	EscalateSupport bool `json:"escalateSupport"` // direct the user to support instead
}

// DefaultDecision applies when no rule matches: offer a retry, no
// escalation. Abandoning to the catalog is always available.
var DefaultDecision = RecoveryDecision{OfferRetry: true}

// RecoveryRule is one expression rule. Expressions see the parameters
// `code` (failure code string), `known` (whether the code is documented),
// `amount` (order amount in the minor unit) and `stage` (the lifecycle
// stage the failure occurred in: "intent", "widget", "render", "redirect",
// "confirm").
type RecoveryRule struct {
	ID         string
	Expression string
	Priority   int // lower evaluates first
	Decision   RecoveryDecision
}

// RecoveryPolicy evaluates compiled recovery rules, first match wins.
type RecoveryPolicy struct {
	rules []compiledRule
}

type compiledRule struct {
	rule RecoveryRule
	expr *govaluate.EvaluableExpression
}

// NewRecoveryPolicy compiles the given rules. Rules keep their given order
// except that a lower Priority moves a rule earlier.
func NewRecoveryPolicy(rules []RecoveryRule) (*RecoveryPolicy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy: recovery rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy: failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{rule: r, expr: expr})
	}
	// Stable insertion sort by priority; rule lists are short.
	for i := 1; i < len(compiled); i++ {
		for j := i; j > 0 && compiled[j].rule.Priority < compiled[j-1].rule.Priority; j-- {
			compiled[j], compiled[j-1] = compiled[j-1], compiled[j]
		}
	}
	return &RecoveryPolicy{rules: compiled}, nil
}

// DefaultRules is the shipped recovery rule set: user-initiated cancels and
// transient bank conditions invite a retry; hard card failures and our own
// confirmation errors do not, and confirmation errors go to support.
func DefaultRules() []RecoveryRule {
	return []RecoveryRule{
		{
			ID:         "user_canceled",
			Expression: "code == 'PAY_PROCESS_CANCELED' || code == 'PAY_PROCESS_ABORTED'",
			Priority:   1,
			Decision:   RecoveryDecision{OfferRetry: true},
		},
		{
			ID:         "transient_bank",
			Expression: "code == 'BANK_TIMEOUT' || code == 'BANK_SERVER_ERROR'",
			Priority:   2,
			Decision:   RecoveryDecision{OfferRetry: true},
		},
		{
			ID:         "hard_card_failure",
			Expression: "code == 'INVALID_CARD' || code == 'CARD_EXPIRED' || code == 'CARD_NOT_SUPPORTED'",
			Priority:   3,
			Decision:   RecoveryDecision{OfferRetry: false},
		},
		{
			ID:         "confirm_error_to_support",
			Expression: "code == 'CONFIRM_ERROR' && stage == 'confirm'",
			Priority:   4,
			Decision:   RecoveryDecision{OfferRetry: false, EscalateSupport: true},
		},
	}
}

// Evaluate returns the decision of the first matching rule, or
// DefaultDecision when nothing matches. A rule evaluation error fails the
// whole evaluation; a rule that yields a non-boolean is an error too.
func (p *RecoveryPolicy) Evaluate(code string, known bool, amount int64, stage string) (RecoveryDecision, error) {
	params := map[string]interface{}{
		"code":   code,
		"known":  known,
		"amount": float64(amount), // govaluate arithmetic is float64-based
		"stage":  stage,
	}
	for _, cr := range p.rules {
		result, err := cr.expr.Evaluate(params)
		if err != nil {
			return RecoveryDecision{}, fmt.Errorf("policy: evaluating rule ID '%s': %w", cr.rule.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return RecoveryDecision{}, fmt.Errorf("policy: rule ID '%s' did not evaluate to a boolean", cr.rule.ID)
		}
		if matched {
			return cr.rule.Decision, nil
		}
	}
	return DefaultDecision, nil
}
