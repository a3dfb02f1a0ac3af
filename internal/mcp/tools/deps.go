package tools

import (
	"context"
	"sync"

	"github.com/usestring/aptrace/internal/catalog"
	"github.com/usestring/aptrace/internal/compare"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/query"
	"github.com/usestring/aptrace/internal/search"
	"github.com/usestring/aptrace/pkg/aplog"
)

// Deps contains all dependencies needed by tool handlers.
type Deps struct {
	Config *config.Config
	Log    *aplog.Reader
	Query  *query.Engine
	Diff   *compare.DiffEngine
	Search *search.Engine

	catalog func() (*catalog.Catalog, error)
}

// NewDeps wires the engines for r. The connection catalog is built on first
// use and shared by every later call.
func NewDeps(cfg *config.Config, r *aplog.Reader) *Deps {
	return &Deps{
		Config: cfg,
		Log:    r,
		Query:  query.NewEngine(),
		Diff:   compare.NewDiffEngine(r),
		Search: search.New(r, search.DefaultWorkers),
		catalog: sync.OnceValues(func() (*catalog.Catalog, error) {
			return catalog.Build(context.Background(), r, catalog.DefaultWorkers)
		}),
	}
}

// Catalog returns the connection catalog, building it if needed.
func (d *Deps) Catalog() (*catalog.Catalog, error) {
	return d.catalog()
}
