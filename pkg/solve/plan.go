// Package solve ties the resolver core to a candidate repository: the
// Runner drives the resolver's step machine, answers its candidate requests
// from a repo.Source, and collects the final assignment into a Plan.
package solve

import (
	"time"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/resolver"
)

// PlanPackage is one chosen package in a finished plan.
type PlanPackage struct {
	ID       string   `json:"id"`
	Key      string   `json:"key"`
	Version  string   `json:"version"`
	Slot     string   `json:"slot,omitempty"`
	Depends  []string `json:"depends,omitempty"`
	RDepends []string `json:"rdepends,omitempty"`
}

// PlanStats captures how much work the resolution took.
type PlanStats struct {
	Duration time.Duration `json:"duration"`
	Lookups  int           `json:"lookups"`
	Failures int           `json:"failures"`
	Cycles   int           `json:"cycles"`
}

// Plan is a consistent, acyclic assignment of one concrete package per
// resolved atom, plus how it was obtained. Plans are what the store
// persists and the API returns.
type Plan struct {
	ID        string        `json:"id,omitempty"`
	Roots     []string      `json:"roots"`
	Packages  []PlanPackage `json:"packages"`
	Stats     PlanStats     `json:"stats"`
	CreatedAt time.Time     `json:"created_at"`
}

// newPlan builds a plan from the resolver's final choices.
func newPlan(roots []atom.Atom, choices []resolver.Candidate, stats PlanStats) *Plan {
	plan := &Plan{
		Roots:     make([]string, len(roots)),
		Packages:  make([]PlanPackage, 0, len(choices)),
		Stats:     stats,
		CreatedAt: time.Now().UTC(),
	}
	for i, a := range roots {
		plan.Roots[i] = a.String()
	}
	for _, c := range choices {
		plan.Packages = append(plan.Packages, PlanPackage{
			ID:       c.ID(),
			Key:      c.Key(),
			Version:  c.Version(),
			Slot:     c.Slot(),
			Depends:  atomStrings(c.Depends()),
			RDepends: atomStrings(c.RDepends()),
		})
	}
	return plan
}

// Package returns the plan entry for key, or nil.
func (p *Plan) Package(key string) *PlanPackage {
	for i := range p.Packages {
		if p.Packages[i].Key == key {
			return &p.Packages[i]
		}
	}
	return nil
}

func atomStrings(atoms []atom.Atom) []string {
	if len(atoms) == 0 {
		return nil
	}
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = a.String()
	}
	return out
}
