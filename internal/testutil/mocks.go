// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"census-typology/internal/domain"
)

// === Count Source Mock ===

// MockCountSource implements domain.CountSource for testing. Rows are served
// from ByMunicipality unless CountsFn is set.
type MockCountSource struct {
	CountsFn       func(ctx context.Context, municipality int) ([]domain.BuildingCount, error)
	ByMunicipality map[int][]domain.BuildingCount
	Columns        []string

	mu    sync.Mutex
	Calls []int // municipalities requested, in call order
}

// Counts implements the interface method for testing.
func (m *MockCountSource) Counts(ctx context.Context, municipality int) ([]domain.BuildingCount, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, municipality)
	m.mu.Unlock()
	if m.CountsFn != nil {
		return m.CountsFn(ctx, municipality)
	}
	return m.ByMunicipality[municipality], nil
}

// PassThroughColumns implements the interface method for testing.
func (m *MockCountSource) PassThroughColumns() []string {
	return m.Columns
}

// === Run Repository Mock ===

// MockRunRepo implements domain.RunRepository for testing.
type MockRunRepo struct {
	CreateFn       func(ctx context.Context, r *domain.Run) (*domain.Run, error)
	FinishFn       func(ctx context.Context, r *domain.Run) error
	AddFailuresFn  func(ctx context.Context, runID string, failures []domain.Failure) error
	GetByIDFn      func(ctx context.Context, id string) (*domain.Run, error)
	ListFn         func(ctx context.Context, limit int) ([]domain.Run, error)
	ListFailuresFn func(ctx context.Context, runID string) ([]domain.Failure, error)

	Finished []*domain.Run // collected runs for assertions
}

// Create implements the interface method for testing.
func (m *MockRunRepo) Create(ctx context.Context, r *domain.Run) (*domain.Run, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	out := *r
	if out.ID == "" {
		out.ID = "run-1"
	}
	return &out, nil
}

// Finish implements the interface method for testing.
func (m *MockRunRepo) Finish(ctx context.Context, r *domain.Run) error {
	m.Finished = append(m.Finished, r)
	if m.FinishFn != nil {
		return m.FinishFn(ctx, r)
	}
	return nil
}

// AddFailures implements the interface method for testing.
func (m *MockRunRepo) AddFailures(ctx context.Context, runID string, failures []domain.Failure) error {
	if m.AddFailuresFn != nil {
		return m.AddFailuresFn(ctx, runID, failures)
	}
	return nil
}

// GetByID implements the interface method for testing.
func (m *MockRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	panic("unexpected call to MockRunRepo.GetByID")
}

// List implements the interface method for testing.
func (m *MockRunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, limit)
	}
	panic("unexpected call to MockRunRepo.List")
}

// ListFailures implements the interface method for testing.
func (m *MockRunRepo) ListFailures(ctx context.Context, runID string) ([]domain.Failure, error) {
	if m.ListFailuresFn != nil {
		return m.ListFailuresFn(ctx, runID)
	}
	panic("unexpected call to MockRunRepo.ListFailures")
}

// === Publisher Mock ===

// MockPublisher implements domain.Publisher by keeping published files in
// memory.
type MockPublisher struct {
	PublishFn func(ctx context.Context, name string, r io.Reader) error

	mu    sync.Mutex
	Files map[string][]byte
}

// Publish implements the interface method for testing.
func (m *MockPublisher) Publish(ctx context.Context, name string, r io.Reader) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, name, r)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Files == nil {
		m.Files = make(map[string][]byte)
	}
	m.Files[name] = buf.Bytes()
	return nil
}

// Destination implements the interface method for testing.
func (m *MockPublisher) Destination() string {
	return "mock://"
}

// Names returns the published file names, sorted.
func (m *MockPublisher) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.Files))
	for n := range m.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
