package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

// Registry maps a job type to its handler. It is populated once during
// bootstrap by explicit Register calls; there is no unregistration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]jobModel.Handler
	logger   *logger_i.Logger
}

type HandlerDescriptor struct {
	JobType string `json:"job_type"`
}

func New() *Registry {
	return &Registry{
		handlers: make(map[string]jobModel.Handler),
		logger:   logger_i.NewLogger("JobRegistry"),
	}
}

// Register wires a handler for its job type. A duplicate type is a caller
// bug that must surface at startup, so it returns an error instead of
// silently replacing.
func (r *Registry) Register(handler jobModel.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobType := handler.JobType()
	if jobType == "" {
		return fmt.Errorf("handler has empty job type")
	}
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("handler already registered for job type: %s", jobType)
	}
	r.handlers[jobType] = handler
	r.logger.Info("Registered job handler", "jobType", jobType)
	return nil
}

func (r *Registry) Resolve(jobType string) (jobModel.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, found := r.handlers[jobType]
	return handler, found
}

func (r *Registry) ListAll() []HandlerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]HandlerDescriptor, 0, len(r.handlers))
	for jobType := range r.handlers {
		descriptors = append(descriptors, HandlerDescriptor{JobType: jobType})
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].JobType < descriptors[j].JobType
	})
	return descriptors
}

// RegisteredTypes is the diagnostic list attached to "no handler" failures.
func (r *Registry) RegisteredTypes() []string {
	descriptors := r.ListAll()
	types := make([]string, len(descriptors))
	for i, d := range descriptors {
		types[i] = d.JobType
	}
	return types
}
