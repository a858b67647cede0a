package internal

import (
	"log"

	"github.com/Knetic/govaluate"

	"hookfeed/pkg/event"
)

// Rule routes records matching When to the Emit topic. Expressions see the
// record fields id, action, author, repo, from_branch and to_branch.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    string   `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// RuleMatch is a topic selected for a record.
type RuleMatch struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	emit    string
	drivers []string
	expr    *govaluate.EvaluableExpression
}

type RuleEngine struct {
	rules  []compiledRule
	logger *log.Logger
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	rules := make([]compiledRule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		expr, err := govaluate.NewEvaluableExpression(rule.When)
		if err != nil {
			return nil, err
		}
		rules = append(rules, compiledRule{emit: rule.Emit, drivers: rule.Drivers, expr: expr})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RuleEngine{rules: rules, logger: logger}, nil
}

// Len returns the number of compiled rules.
func (r *RuleEngine) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Evaluate returns the topics whose rule matches record.
func (r *RuleEngine) Evaluate(record event.Record) []RuleMatch {
	if r.Len() == 0 {
		return nil
	}

	params := record.Fields()
	matches := make([]RuleMatch, 0, 1)
	for _, rule := range r.rules {
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			r.logger.Printf("rule eval failed: %v", err)
			continue
		}
		if ok, _ := result.(bool); ok {
			matches = append(matches, RuleMatch{Topic: rule.emit, Drivers: rule.drivers})
		}
	}
	return matches
}
