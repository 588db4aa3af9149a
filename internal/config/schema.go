package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema declares the tables the NL2SQL translator is allowed to query.
// Only declared tables may appear in generated SQL; tables marked public are
// exempt from the acting-user row filter.
type Schema struct {
	Tables []TableSchema `yaml:"tables"`
}

// TableSchema declares one whitelisted table.
type TableSchema struct {
	Name      string   `yaml:"name"`
	Columns   []string `yaml:"columns"`
	Public    bool     `yaml:"public"`
	UserScope string   `yaml:"user_scope"` // column holding the owning user id
}

// LoadSchema reads a YAML schema declaration from path.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return ParseSchema(data)
}

// ParseSchema unmarshals YAML bytes into a validated Schema.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) validate() error {
	if len(s.Tables) == 0 {
		return fmt.Errorf("schema: no tables declared")
	}
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("schema: table with empty name")
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("schema: table %s has no columns", t.Name)
		}
		if !t.Public && t.UserScope == "" {
			return fmt.Errorf("schema: non-public table %s needs a user_scope column", t.Name)
		}
	}
	return nil
}

// TableNames returns the set of declared table names.
func (s *Schema) TableNames() map[string]bool {
	names := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		names[t.Name] = true
	}
	return names
}

// PublicTables returns the set of tables exempt from user scoping.
func (s *Schema) PublicTables() map[string]bool {
	names := make(map[string]bool)
	for _, t := range s.Tables {
		if t.Public {
			names[t.Name] = true
		}
	}
	return names
}

// DefaultSchema is the compiled-in schema matching the store's migrations.
func DefaultSchema() *Schema {
	return &Schema{Tables: []TableSchema{
		{
			Name:      "tickets",
			Columns:   []string{"id", "title", "description", "status", "assigned_to", "project_id"},
			UserScope: "assigned_to",
		},
		{
			Name:      "pull_requests",
			Columns:   []string{"id", "title", "summary", "ticket_id", "author_id", "project_id"},
			UserScope: "author_id",
		},
		{
			Name:    "projects",
			Columns: []string{"id", "name", "description"},
			Public:  true,
		},
		{
			Name:    "learnings",
			Columns: []string{"id", "title", "summary", "tags", "url"},
			Public:  true,
		},
	}}
}
