package rules

import (
	"context"

	"algoshield.org/console/internal/apiclient"
)

// Service wraps the /rules endpoints.
type Service struct {
	api apiclient.Requester
}

func NewService(api apiclient.Requester) *Service {
	return &Service{api: api}
}

func (s *Service) List(ctx context.Context) ([]Rule, error) {
	var out struct {
		Rules []Rule `json:"rules"`
	}
	if _, err := s.api.Get(ctx, apiclient.PathRules, &out); err != nil {
		return nil, err
	}
	if out.Rules == nil {
		out.Rules = []Rule{}
	}
	return out.Rules, nil
}

func (s *Service) Get(ctx context.Context, id string) (Rule, error) {
	var r Rule
	if _, err := s.api.Get(ctx, apiclient.RulePath(id), &r); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, r Rule) (Rule, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	r.ID = ""
	var out Rule
	if _, err := s.api.Post(ctx, apiclient.PathRules, r, &out); err != nil {
		return Rule{}, err
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, r Rule) (Rule, error) {
	if r.ID == "" {
		return Rule{}, apiclient.Validation("Rule ID is required")
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	var out Rule
	if _, err := s.api.Put(ctx, apiclient.RulePath(r.ID), r, &out); err != nil {
		return Rule{}, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apiclient.Validation("Rule ID is required")
	}
	_, err := s.api.Delete(ctx, apiclient.RulePath(id), nil)
	return err
}

// Toggle flips Enabled and saves the whole rule.
func (s *Service) Toggle(ctx context.Context, r Rule) (Rule, error) {
	r = r.Clone()
	r.Enabled = !r.Enabled
	return s.Update(ctx, r)
}
