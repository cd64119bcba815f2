// Package memory provides an in-memory leave.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	genericstore "github.com/warp/leave-engine/generic/store"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps every record in maps guarded by one RWMutex. The ledger is a
// generic/store.Memory; WithTx snapshots both and restores them on error.
//
// Writes made through Store wait for any running WithTx, so a rollback never
// discards them. Reads don't wait and may observe uncommitted writes.
type Store struct {
	txMu sync.Mutex // held by WithTx and by every write outside it

	mu        sync.RWMutex
	employees map[generic.EntityID]leave.Employee
	policies  map[string]leave.LeavePolicy
	requests  map[string]leave.LeaveRequest
	holidays  map[string]generic.Holiday

	*genericstore.Memory
}

var _ leave.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		employees: make(map[generic.EntityID]leave.Employee),
		policies:  make(map[string]leave.LeavePolicy),
		requests:  make(map[string]leave.LeaveRequest),
		holidays:  make(map[string]generic.Holiday),
		Memory:    genericstore.NewMemory(),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, id generic.EntityID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return leave.Employee{}, leave.EmployeeNotFound(id)
	}
	return e, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveEmployee(_ context.Context, e leave.Employee) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.saveEmployee(e)
}

func (s *Store) saveEmployee(e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (s *Store) GetPolicy(_ context.Context, id string) (leave.LeavePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return leave.LeavePolicy{}, leave.PolicyNotFound(id)
	}
	return p, nil
}

func (s *Store) ListPolicies(_ context.Context) ([]leave.LeavePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.LeavePolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SavePolicy(_ context.Context, p leave.LeavePolicy) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.savePolicy(p)
}

func (s *Store) savePolicy(p leave.LeavePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) GetRequest(_ context.Context, id string) (leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return leave.LeaveRequest{}, leave.RequestNotFound(id)
	}
	return r, nil
}

func (s *Store) SaveRequest(_ context.Context, r leave.LeaveRequest) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.saveRequest(r)
}

func (s *Store) saveRequest(r leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *Store) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	leave.SortRequests(out)
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(_ context.Context, h generic.Holiday) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.saveHoliday(h)
}

func (s *Store) saveHoliday(h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[h.ID] = h
	return nil
}

func (s *Store) DeleteHoliday(_ context.Context, id string) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.deleteHoliday(id)
}

func (s *Store) deleteHoliday(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holidays[id]; !ok {
		return &leave.NotFoundError{Kind: leave.KindHoliday, ID: id}
	}
	delete(s.holidays, id)
	return nil
}

func (s *Store) ListHolidays(_ context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]generic.Holiday, 0, len(s.holidays))
	for _, h := range s.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.Memory.Append(ctx, tx)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn atomically: transactions and outside writes are
// serialized and a failing fn rolls every map and the ledger back to their
// state before the call.
func (s *Store) WithTx(_ context.Context, fn func(leave.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(txRepo{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	employees map[generic.EntityID]leave.Employee
	policies  map[string]leave.LeavePolicy
	requests  map[string]leave.LeaveRequest
	holidays  map[string]generic.Holiday
	ledger    genericstore.Snapshot
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		employees: make(map[generic.EntityID]leave.Employee, len(s.employees)),
		policies:  make(map[string]leave.LeavePolicy, len(s.policies)),
		requests:  make(map[string]leave.LeaveRequest, len(s.requests)),
		holidays:  make(map[string]generic.Holiday, len(s.holidays)),
		ledger:    s.Memory.Snapshot(),
	}
	for k, v := range s.employees {
		snap.employees[k] = v
	}
	for k, v := range s.policies {
		snap.policies[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	for k, v := range s.holidays {
		snap.holidays[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	s.employees = snap.employees
	s.policies = snap.policies
	s.requests = snap.requests
	s.holidays = snap.holidays
	s.mu.Unlock()
	s.Memory.Restore(snap.ledger)
}

// txRepo is the Repository handed to WithTx. Its writes skip txMu, which the
// enclosing WithTx already holds.
type txRepo struct{ *Store }

func (r txRepo) SaveEmployee(_ context.Context, e leave.Employee) error {
	return r.saveEmployee(e)
}

func (r txRepo) SavePolicy(_ context.Context, p leave.LeavePolicy) error {
	return r.savePolicy(p)
}

func (r txRepo) SaveRequest(_ context.Context, lr leave.LeaveRequest) error {
	return r.saveRequest(lr)
}

func (r txRepo) SaveHoliday(_ context.Context, h generic.Holiday) error {
	return r.saveHoliday(h)
}

func (r txRepo) DeleteHoliday(_ context.Context, id string) error {
	return r.deleteHoliday(id)
}

func (r txRepo) Append(ctx context.Context, tx generic.Transaction) error {
	return r.Memory.Append(ctx, tx)
}
