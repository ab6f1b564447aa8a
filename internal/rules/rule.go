// Package rules is the console's CRUD front end over fraud rules. No rule
// evaluation happens here.
package rules

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"
	"time"
	"unicode/utf8"

	"algoshield.org/console/internal/apiclient"
)

type Type string

const (
	TypeAmount    Type = "amount"
	TypeVelocity  Type = "velocity"
	TypeBlocklist Type = "blocklist"
	TypeGeography Type = "geography"
	TypePattern   Type = "pattern"
	TypeCustom    Type = "custom"
)

// Types lists every rule type in display order.
var Types = []Type{TypeAmount, TypeVelocity, TypeBlocklist, TypeGeography, TypePattern, TypeCustom}

type Action string

const (
	ActionAllow  Action = "allow"
	ActionBlock  Action = "block"
	ActionReview Action = "review"
	ActionScore  Action = "score"
)

var Actions = []Action{ActionAllow, ActionBlock, ActionReview, ActionScore}

const (
	DefaultPriority = 10
	DefaultScore    = 0.0

	maxNameLength        = 255
	maxDescriptionLength = 1000
	maxPriority          = 1000
	maxScore             = 100
)

// Rule mirrors the backend entity. Lower priority runs first.
type Rule struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Type        Type           `json:"type"`
	Action      Action         `json:"action"`
	Priority    int            `json:"priority"`
	Enabled     bool           `json:"enabled"`
	Conditions  map[string]any `json:"conditions"`
	Score       float64        `json:"score"`
	CreatedAt   time.Time      `json:"created_at,omitzero"`
	UpdatedAt   time.Time      `json:"updated_at,omitzero"`
}

// NewDraft returns the values a fresh create form starts with.
func NewDraft() Rule {
	return Rule{
		Type:       TypeAmount,
		Action:     ActionScore,
		Priority:   DefaultPriority,
		Score:      DefaultScore,
		Enabled:    true,
		Conditions: map[string]any{},
	}
}

// Clone deep-copies the rule including nested conditions.
func (r Rule) Clone() Rule {
	cp := r
	cp.Conditions = cloneConditions(r.Conditions)
	return cp
}

func cloneConditions(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneConditions(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Normalize trims text fields and guarantees a non-nil condition payload.
func (r *Rule) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Conditions == nil {
		r.Conditions = map[string]any{}
	}
}

// Validate applies the same bounds the backend enforces so obvious mistakes
// never leave the console.
func (r Rule) Validate() error {
	switch {
	case r.Name == "":
		return apiclient.Validation("Name is required")
	case utf8.RuneCountInString(r.Name) > maxNameLength:
		return apiclient.Validation("Name must be at most 255 characters")
	case utf8.RuneCountInString(r.Description) > maxDescriptionLength:
		return apiclient.Validation("Description must be at most 1000 characters")
	case !validType(r.Type):
		return apiclient.Validation(fmt.Sprintf("Invalid rule type: %s", r.Type))
	case !validAction(r.Action):
		return apiclient.Validation(fmt.Sprintf("Invalid rule action: %s", r.Action))
	case r.Priority < 0 || r.Priority > maxPriority:
		return apiclient.Validation("Priority must be between 0 and 1000")
	case r.Score < 0 || r.Score > maxScore:
		return apiclient.Validation("Score must be between 0 and 100")
	}
	return nil
}

func validType(t Type) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

func validAction(a Action) bool {
	for _, v := range Actions {
		if v == a {
			return true
		}
	}
	return false
}

// Decode reads a rule from JSON, filling documented defaults for any field
// the input omits. Priority and score are always numeric afterwards.
func Decode(r io.Reader) (Rule, error) {
	var in struct {
		ID          string         `json:"id"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Type        *Type          `json:"type"`
		Action      *Action        `json:"action"`
		Priority    *int           `json:"priority"`
		Enabled     *bool          `json:"enabled"`
		Conditions  map[string]any `json:"conditions"`
		Score       *float64       `json:"score"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Rule{}, fmt.Errorf("decode rule: %w", err)
	}

	out := NewDraft()
	out.ID = in.ID
	out.Name = in.Name
	out.Description = in.Description
	if in.Type != nil {
		out.Type = *in.Type
	}
	if in.Action != nil {
		out.Action = *in.Action
	}
	if in.Priority != nil {
		out.Priority = *in.Priority
	}
	if in.Enabled != nil {
		out.Enabled = *in.Enabled
	}
	if in.Score != nil {
		out.Score = *in.Score
	}
	if in.Conditions != nil {
		out.Conditions = maps.Clone(in.Conditions)
	}
	out.Normalize()
	return out, nil
}
