package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryAuditStore keeps the audit trail in memory. Used in tests and when no
// shared database is reachable (dry runs against external tenants only).
type MemoryAuditStore struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditStore constructs an empty in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Record(_ context.Context, entries []AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryAuditStore) Recent(_ context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	return lastN(s.entries, limit), nil
}

func (s *MemoryAuditStore) RecentForTenant(_ context.Context, tenantID uuid.UUID, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	var matched []AuditEntry
	for _, entry := range s.entries {
		if entry.TenantID != nil && *entry.TenantID == tenantID {
			matched = append(matched, entry)
		}
	}
	return lastN(matched, limit), nil
}

// lastN returns up to n entries, newest first.
func lastN(entries []AuditEntry, n int) []AuditEntry {
	out := make([]AuditEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}

// Ensure interface compliance.
var _ AuditStore = (*MemoryAuditStore)(nil)
