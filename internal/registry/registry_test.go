package registry

import (
	"context"
	"testing"

	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

type stubHandler struct {
	jobType string
}

func (h *stubHandler) JobType() string { return h.jobType }

func (h *stubHandler) Handle(ctx context.Context, job jobModel.Job) error { return nil }

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := New()

	if err := reg.Register(&stubHandler{jobType: "parse"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler, found := reg.Resolve("parse")
	if !found || handler == nil {
		t.Fatal("registered handler not resolvable")
	}

	t.Run("Unknown Type Not Found", func(t *testing.T) {
		if _, found := reg.Resolve("ghost"); found {
			t.Error("resolved a handler that was never registered")
		}
	})
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	reg := New()

	if err := reg.Register(&stubHandler{jobType: "embedding"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	err := reg.Register(&stubHandler{jobType: "embedding"})
	if err == nil {
		t.Fatal("duplicate registration did not error")
	}
	if err.Error() != "handler already registered for job type: embedding" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistry_EmptyJobTypeFails(t *testing.T) {
	reg := New()
	if err := reg.Register(&stubHandler{}); err == nil {
		t.Error("empty job type accepted")
	}
}

func TestRegistry_ListAllSorted(t *testing.T) {
	reg := New()
	for _, jobType := range []string{"indexing", "parse", "chunking"} {
		if err := reg.Register(&stubHandler{jobType: jobType}); err != nil {
			t.Fatalf("Register %s failed: %v", jobType, err)
		}
	}

	descriptors := reg.ListAll()
	if len(descriptors) != 3 {
		t.Fatalf("got %d descriptors, want 3", len(descriptors))
	}
	want := []string{"chunking", "indexing", "parse"}
	for i, descriptor := range descriptors {
		if descriptor.JobType != want[i] {
			t.Errorf("descriptor %d = %s, want %s", i, descriptor.JobType, want[i])
		}
	}
}
