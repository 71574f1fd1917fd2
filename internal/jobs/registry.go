package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"songdub/internal/services"
)

// Registry stores job records. Implementations return copies so callers never
// share memory with the stored record.
type Registry interface {
	Create(ctx context.Context, job *Job) error
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// List returns jobs newest first.
	List(ctx context.Context) ([]*Job, error)
	Counts(ctx context.Context) (Counts, error)
}

// MemoryRegistry keeps jobs in process memory.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]*Job)}
}

func (r *MemoryRegistry) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryRegistry) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; !exists {
		return notFound(job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	return job.Clone(), nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	out := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRegistry) Counts(_ context.Context) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var counts Counts
	for _, job := range r.jobs {
		counts.Add(job.Status)
	}
	return counts, nil
}

func sortNewestFirst(list []*Job) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "", "jobs", "lookup", fmt.Errorf("job %s not found", id))
}
