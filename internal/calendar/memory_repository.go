package calendar

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository, used by tests and
// local development without Postgres.
type MemoryRepository struct {
	mu            sync.RWMutex
	practitioners map[uuid.UUID]Practitioner
	rules         map[uuid.UUID][]WeeklyRule
	exceptions    map[uuid.UUID]map[string][]DateException
	nextID        int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		practitioners: make(map[uuid.UUID]Practitioner),
		rules:         make(map[uuid.UUID][]WeeklyRule),
		exceptions:    make(map[uuid.UUID]map[string][]DateException),
	}
}

func (r *MemoryRepository) AddPractitioner(p Practitioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.practitioners[p.ID] = p
}

func (r *MemoryRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPractitioners(ctx context.Context, specialty string, limit, offset int) ([]Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Practitioner
	for _, p := range r.practitioners {
		if !p.Active {
			continue
		}
		if specialty != "" && (p.Specialty == nil || !strings.EqualFold(*p.Specialty, specialty)) {
			continue
		}
		all = append(all, p)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) ListWeeklyRules(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]WeeklyRule(nil), r.rules[practitionerID]...), nil
}

func (r *MemoryRepository) ListExceptionsForDate(ctx context.Context, practitionerID uuid.UUID, date string) ([]DateException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDate, ok := r.exceptions[practitionerID]
	if !ok {
		return nil, nil
	}
	return append([]DateException(nil), byDate[date]...), nil
}

func (r *MemoryRepository) ReplaceWeeklyRules(ctx context.Context, practitionerID uuid.UUID, rules []WeeklyRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := make([]WeeklyRule, 0, len(rules))
	for _, wr := range rules {
		r.nextID++
		wr.ID = r.nextID
		wr.PractitionerID = practitionerID
		replaced = append(replaced, wr)
	}
	r.rules[practitionerID] = replaced
	return nil
}

func (r *MemoryRepository) CreateException(ctx context.Context, ex DateException) (*DateException, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ex.ID = r.nextID

	byDate, ok := r.exceptions[ex.PractitionerID]
	if !ok {
		byDate = make(map[string][]DateException)
		r.exceptions[ex.PractitionerID] = byDate
	}
	key := ex.Date.Format(DateLayout)
	byDate[key] = append(byDate[key], ex)

	return &ex, nil
}
