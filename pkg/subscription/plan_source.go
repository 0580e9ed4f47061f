package subscription

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type inMemSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemSource returns an in-memory source holding a copy of the given plans.
// Panics if no plans are provided.
func NewInMemSource(plans ...Plan) PlansListSource {
	if len(plans) < 1 {
		panic("at least one plan is required")
	}
	m := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		m[plan.ID] = plan
	}
	return &inMemSource{plans: m}
}

// Load returns a copy of all available plans from memory.
func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.plans), nil
}

type plansFile struct {
	Plans []Plan `yaml:"plans"`
}

type yamlSource struct {
	path string
}

// NewYAMLFileSource loads plans from a YAML file on every Load call.
//
//	plans:
//	  - id: price_starter_monthly
//	    name: Starter
//	    trial_days: 14
//	    price: {amount: 1900, currency: USD}
//	    interval: monthly
func NewYAMLFileSource(path string) PlansListSource {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[string]Plan, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plans file: %w", err)
	}
	defer f.Close()

	return DecodePlansYAML(f)
}

// DecodePlansYAML decodes a plans document. Duplicate IDs are rejected.
func DecodePlansYAML(r io.Reader) (map[string]Plan, error) {
	var doc plansFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode plans: %w", err)
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if _, dup := plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidPlanConfiguration, p.ID)
		}
		plans[p.ID] = p
	}
	return plans, nil
}
