package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"devmate/internal/config"
	"devmate/internal/domain"
	"devmate/policy"
)

// writeKeywords are tokens that disqualify a statement outright, wherever
// they appear.
var writeKeywords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"drop":     true,
	"alter":    true,
	"create":   true,
	"attach":   true,
	"detach":   true,
	"pragma":   true,
	"replace":  true,
	"truncate": true,
	"grant":    true,
	"revoke":   true,
	"vacuum":   true,
}

var (
	fromListPattern = regexp.MustCompile(`(?i)\bfrom\s+([^;()]+?)(?:\s+(?:where|join|left|right|inner|outer|cross|on|group|order|having|limit|union|intersect|except)\b|$)`)
	joinRefPattern  = regexp.MustCompile(`(?i)\bjoin\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	identHead       = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
)

// Facts are the statement properties fed into the policy engine.
type Facts struct {
	SingleStatement   bool     `json:"single_statement"`
	FirstKeyword      string   `json:"first_keyword"`
	HasWriteKeyword   bool     `json:"has_write_keyword"`
	UserScoped        bool     `json:"user_scoped"`
	TablesWhitelisted bool     `json:"tables_whitelisted"`
	Tables            []string `json:"tables"`
}

// Guard admits or rejects generated SQL before execution. It computes the
// statement facts in Go and lets the rego policy make the decision; a
// rejection is final and the statement is never executed.
type Guard struct {
	engine *policy.Engine
	schema *config.Schema
}

// NewGuard creates a guard over the declared schema.
func NewGuard(ctx context.Context, schema *config.Schema) (*Guard, error) {
	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("nl2sql: build policy engine: %w", err)
	}
	return &Guard{engine: engine, schema: schema}, nil
}

// Inspect computes the policy input facts for a candidate statement.
func (g *Guard) Inspect(sqlText string) Facts {
	trimmed := strings.TrimSpace(sqlText)
	trimmed = strings.TrimSuffix(trimmed, ";")

	facts := Facts{
		SingleStatement: !strings.Contains(trimmed, ";"),
	}

	tokens := tokenizeSQL(trimmed)
	if len(tokens) > 0 {
		facts.FirstKeyword = tokens[0]
	}
	for _, tok := range tokens {
		if writeKeywords[tok] {
			facts.HasWriteKeyword = true
			break
		}
	}

	facts.Tables = extractTables(trimmed)
	whitelist := g.schema.TableNames()
	facts.TablesWhitelisted = len(facts.Tables) > 0
	for _, t := range facts.Tables {
		if !whitelist[t] {
			facts.TablesWhitelisted = false
			break
		}
	}

	// A statement is scoped when it binds :user_id, or touches only tables
	// declared public.
	if strings.Contains(strings.ToLower(trimmed), ":user_id") {
		facts.UserScoped = true
	} else {
		public := g.schema.PublicTables()
		allPublic := len(facts.Tables) > 0
		for _, t := range facts.Tables {
			if !public[t] {
				allPublic = false
				break
			}
		}
		facts.UserScoped = allPublic
	}

	return facts
}

// Check admits the statement or returns an ErrValidation describing why it
// was rejected. Rejections are logged as safety flags.
func (g *Guard) Check(ctx context.Context, sqlText string) error {
	facts := g.Inspect(sqlText)

	decision, err := g.engine.Evaluate(ctx, map[string]interface{}{
		"single_statement":   facts.SingleStatement,
		"first_keyword":      facts.FirstKeyword,
		"has_write_keyword":  facts.HasWriteKeyword,
		"user_scoped":        facts.UserScoped,
		"tables_whitelisted": facts.TablesWhitelisted,
	})
	if err != nil {
		return fmt.Errorf("nl2sql: policy evaluation: %w", err)
	}

	if decision != "allow" {
		slog.Warn("SAFETY: rejected generated SQL",
			"first_keyword", facts.FirstKeyword,
			"single_statement", facts.SingleStatement,
			"has_write_keyword", facts.HasWriteKeyword,
			"user_scoped", facts.UserScoped,
			"tables_whitelisted", facts.TablesWhitelisted,
			"tables", strings.Join(facts.Tables, ","))
		return fmt.Errorf("generated SQL failed the safety check: %w", domain.ErrValidation)
	}
	return nil
}

// tokenizeSQL lowercases and splits a statement on non-word boundaries.
// String literals are not parsed; a write keyword inside a literal is a
// false positive we accept, the guard errs toward rejection.
func tokenizeSQL(sqlText string) []string {
	return strings.FieldsFunc(strings.ToLower(sqlText), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_'
	})
}

// extractTables pulls table names following FROM and JOIN keywords. FROM
// clauses are split on commas so an implicit cross join cannot hide a table
// from the whitelist and scope checks. A comma segment that does not start
// with a known table name surfaces as an unknown table and gets blocked;
// extraction errs toward rejection.
func extractTables(sqlText string) []string {
	seen := make(map[string]bool)
	var tables []string
	add := func(name string) {
		name = strings.ToLower(name)
		if name != "" && !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	for _, m := range fromListPattern.FindAllStringSubmatch(sqlText, -1) {
		for _, ref := range strings.Split(m[1], ",") {
			add(identHead.FindString(strings.TrimSpace(ref)))
		}
	}
	for _, m := range joinRefPattern.FindAllStringSubmatch(sqlText, -1) {
		add(m[1])
	}
	return tables
}
