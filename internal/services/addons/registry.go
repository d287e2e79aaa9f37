package addons

import (
	"context"
	"sort"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// ModuleInput is everything a module needs to build its prompt.
type ModuleInput struct {
	Job       *models.AnalysisJob
	Provider  string
	Model     string
	Snapshot  *models.UniverseRow
	Selection models.SelectedModule

	// Scores and Flags are cumulative over the modules already run in this batch
	Scores models.Scores
	Flags  models.Flags

	PriorStageSummary string
	EarlierFindings   []string
}

// ModuleExecutor runs one add-on module and returns its delta.
type ModuleExecutor interface {
	ID() string
	Name() string
	Execute(ctx context.Context, in ModuleInput) (*models.Delta, error)
}

// Registry is the closed set of known modules keyed by id.
//
// Lookup of an id that is not registered reports false and the pipeline skips
// that module. Selector output naming modules this build does not know about
// is therefore ignored rather than failing the job.
type Registry struct {
	modules map[string]ModuleExecutor
}

// NewRegistry creates a registry holding the given executors.
func NewRegistry(executors ...ModuleExecutor) *Registry {
	r := &Registry{modules: make(map[string]ModuleExecutor, len(executors))}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the executor for its id.
func (r *Registry) Register(e ModuleExecutor) {
	r.modules[e.ID()] = e
}

// Lookup returns the executor for id.
func (r *Registry) Lookup(id string) (ModuleExecutor, bool) {
	e, ok := r.modules[id]
	return e, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
