package delivery

import (
	"context"
	"sort"
	"strings"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// TemplateProvider picks an approved template for a use case.
type TemplateProvider interface {
	GetBestTemplate(ctx context.Context, useCase, language string) (*Template, error)
}

type rankedTemplate struct {
	template Template
	health   int
}

// StaticTemplateProvider serves templates declared in configuration.
type StaticTemplateProvider struct {
	byUseCase map[string][]rankedTemplate
}

var _ TemplateProvider = (*StaticTemplateProvider)(nil)

// NewStaticTemplateProvider indexes templates by use case, healthiest first.
func NewStaticTemplateProvider(templates []config.TemplateConfig) *StaticTemplateProvider {
	p := &StaticTemplateProvider{byUseCase: make(map[string][]rankedTemplate)}
	for _, t := range templates {
		p.byUseCase[t.UseCase] = append(p.byUseCase[t.UseCase], rankedTemplate{
			template: Template{Name: t.Name, Language: t.Language},
			health:   t.HealthScore,
		})
	}
	for _, list := range p.byUseCase {
		sort.SliceStable(list, func(i, j int) bool { return list[i].health > list[j].health })
	}
	return p
}

// GetBestTemplate returns the healthiest template in language, falling back
// to English and then to any language.
func (p *StaticTemplateProvider) GetBestTemplate(ctx context.Context, useCase, language string) (*Template, error) {
	list := p.byUseCase[useCase]
	if len(list) == 0 {
		return nil, ErrNoTemplate
	}

	for _, lang := range []string{language, "en"} {
		for _, rt := range list {
			if strings.EqualFold(rt.template.Language, lang) {
				t := rt.template
				return &t, nil
			}
		}
	}

	t := list[0].template
	return &t, nil
}
