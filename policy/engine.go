// Package policy evaluates the SQL safety policy with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine for generated-SQL admission.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.sqlguard.decision"),
		rego.Module("sqlguard.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the SQL guard policy.
// Input is a map of facts about the candidate statement: single_statement,
// first_keyword, has_write_keyword, user_scoped, tables_whitelisted.
// Returns: decision (allow, block), error.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; no result means it failed to load.
		return "block", nil
	}

	val := results[0].Expressions[0].Value
	if s, ok := val.(string); ok {
		return s, nil
	}

	return "block", nil
}

// DefaultPolicy is the SQL guard policy. Only a single whitelisted,
// user-scoped SELECT is admitted; everything else is blocked.
const DefaultPolicy = `
package sqlguard

import rego.v1

default decision := "block"

decision := "allow" if {
	input.single_statement == true
	input.first_keyword == "select"
	input.has_write_keyword == false
	input.user_scoped == true
	input.tables_whitelisted == true
}
`
