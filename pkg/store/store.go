// Package store persists finished resolution plans.
//
// Two backends are provided:
//   - file: JSON documents in a directory, for CLI usage
//   - mongo: a MongoDB collection, for server deployments
//
// Plans are identified by UUIDs assigned on first save.
package store

import (
	"context"
	"time"

	"github.com/keelpm/keel/pkg/solve"
)

// Summary is the listing view of a stored plan.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	Roots     []string  `json:"roots" bson:"roots"`
	Packages  int       `json:"packages" bson:"packages"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Store is the interface plan storage backends implement.
type Store interface {
	// Save stores a plan, assigning a fresh UUID if the plan has none.
	Save(ctx context.Context, plan *solve.Plan) error

	// Get retrieves a plan by ID. Returns an error with code
	// PLAN_NOT_FOUND if no such plan exists.
	Get(ctx context.Context, id string) (*solve.Plan, error)

	// List returns summaries of all stored plans, newest first.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a plan. Returns an error with code PLAN_NOT_FOUND
	// if no such plan exists.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

func summarize(p *solve.Plan) Summary {
	return Summary{
		ID:        p.ID,
		Roots:     p.Roots,
		Packages:  len(p.Packages),
		CreatedAt: p.CreatedAt,
	}
}
