// Package dataset supplies named, versioned schema/seed pairs that a
// Pool request can reference by id instead of inlining schema_sql and
// seed_sql directly, per spec.md §6's dataset_id contract.
package dataset

import (
	"context"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// Dataset is one named, versioned schema/seed pair scoped to a single
// backend kind.
type Dataset struct {
	ID          string
	Name        string
	BackendKind executor.Kind
	Description string
	SchemaSQL   string
	SeedSQL     string
}

// Store resolves a dataset id to its Dataset. Implementations may be
// backed by memory, a database, or a remote metadata service; the core
// only depends on this interface.
type Store interface {
	Get(ctx context.Context, id string) (Dataset, error)
}

// StaticStore is an in-memory Store backed by a fixed map, suitable for
// embedding a small catalog directly into a deployment.
type StaticStore struct {
	datasets map[string]Dataset
}

// NewStaticStore builds a StaticStore from the given datasets, keyed by
// their ID field.
func NewStaticStore(datasets []Dataset) *StaticStore {
	indexed := make(map[string]Dataset, len(datasets))
	for _, d := range datasets {
		indexed[d.ID] = d
	}
	return &StaticStore{datasets: indexed}
}

// Get returns the dataset registered under id, or a not-found error.
func (s *StaticStore) Get(ctx context.Context, id string) (Dataset, error) {
	d, ok := s.datasets[id]
	if !ok {
		return Dataset{}, sberrors.NewNotFound("dataset not found: " + id)
	}
	return d, nil
}
