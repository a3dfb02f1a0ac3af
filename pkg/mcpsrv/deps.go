package mcpsrv

import (
	"github.com/usestring/aptrace/internal/catalog"
	"github.com/usestring/aptrace/internal/compare"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/query"
	"github.com/usestring/aptrace/internal/search"
	"github.com/usestring/aptrace/pkg/aplog"
)

// Deps contains all dependencies available to custom tools.
// This gives custom tools access to the same infrastructure as builtin tools.
type Deps struct {
	Config *config.Config
	Log    *aplog.Reader
	Query  *query.Engine
	Diff   *compare.DiffEngine
	Search *search.Engine

	// Catalog returns the connection catalog, building it on first use.
	Catalog func() (*catalog.Catalog, error)
}
