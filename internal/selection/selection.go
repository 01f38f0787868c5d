package selection

import (
	"fmt"

	"github.com/nulzo/completion-gateway/internal/registry"
	"github.com/nulzo/completion-gateway/pkg/api"
)

// Service picks a (provider, model) pair for a request. Selection is
// first-fit in provider priority order, then model declaration order; an
// explicit preference is strict and never silently substituted.
type Service struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Service {
	return &Service{registry: reg}
}

// SelectBest resolves the criteria to a concrete provider and model.
func (s *Service) SelectBest(criteria api.SelectionCriteria) (*api.Provider, *api.Model, error) {
	if criteria.PreferredProvider != nil {
		return s.selectPreferred(criteria)
	}
	return s.selectOpen(criteria)
}

func (s *Service) selectPreferred(criteria api.SelectionCriteria) (*api.Provider, *api.Model, error) {
	provider, err := s.registry.Get(*criteria.PreferredProvider)
	if err != nil {
		return nil, nil, err
	}

	if criteria.PreferredModel != nil {
		model, ok := provider.Model(*criteria.PreferredModel)
		if !ok {
			return nil, nil, api.NotFoundError(fmt.Sprintf(
				"model %s not found on provider %s", *criteria.PreferredModel, provider.ID))
		}
		if !modelFits(model, criteria) {
			// The caller asked for this exact model; report the mismatch
			// instead of substituting another one.
			return nil, nil, api.NotFoundError(fmt.Sprintf(
				"model %s on provider %s does not satisfy the request", model.Name, provider.ID))
		}
		return provider, &model, nil
	}

	for _, model := range provider.Models {
		if modelFits(model, criteria) {
			m := model
			return provider, &m, nil
		}
	}
	return nil, nil, api.NotFoundError(fmt.Sprintf(
		"no suitable model on provider %s", provider.ID))
}

func (s *Service) selectOpen(criteria api.SelectionCriteria) (*api.Provider, *api.Model, error) {
	for _, provider := range s.registry.ListEnabled() {
		for _, model := range provider.Models {
			if modelFits(model, criteria) {
				p, m := provider, model
				return &p, &m, nil
			}
		}
	}
	return nil, nil, api.NotFoundError("no suitable provider found")
}

func modelFits(model api.Model, criteria api.SelectionCriteria) bool {
	if model.Status != api.ModelAvailable {
		return false
	}
	if model.MaxTokens < criteria.RequiredTokens {
		return false
	}
	for _, capability := range criteria.RequiredCapabilities {
		if !model.HasCapability(capability) {
			return false
		}
	}
	return true
}
