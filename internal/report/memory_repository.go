package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scout-app/scout-api/internal/geo"
)

type verificationKey struct {
	reportID string
	userID   string
}

type memoryRepository struct {
	mu            sync.RWMutex
	reports       map[string]Report
	verifications map[verificationKey]time.Time
}

// NewMemoryRepository builds an in-memory report store.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		reports:       make(map[string]Report),
		verifications: make(map[verificationKey]time.Time),
	}
}

func (r *memoryRepository) Create(_ context.Context, report Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = report
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return report, nil
}

func (r *memoryRepository) Update(_ context.Context, report Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.reports[report.ID]
	if !ok {
		return ErrNotFound
	}
	existing.LocationName = report.LocationName
	existing.TransportLine = report.TransportLine
	existing.Description = report.Description
	r.reports[report.ID] = existing
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[id]; !ok {
		return ErrNotFound
	}
	r.deleteLocked(id)
	return nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]Report, int, error) {
	r.mu.RLock()
	matches := make([]Report, 0, len(r.reports))
	var box geo.Box
	if filter.Center != nil {
		box = geo.BoundingBox(*filter.Center, filter.RadiusKm)
	}
	for _, report := range r.reports {
		if !report.ActiveAt(filter.Now) || report.VerificationCount < filter.MinVerifications {
			continue
		}
		if filter.Center != nil {
			if !box.Contains(report.Point()) || geo.DistanceKm(*filter.Center, report.Point()) > filter.RadiusKm {
				continue
			}
		}
		matches = append(matches, report)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	if filter.Offset >= total {
		return []Report{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matches[filter.Offset:end], total, nil
}

func (r *memoryRepository) AddVerification(_ context.Context, reportID, userID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[reportID]
	if !ok {
		return 0, ErrNotFound
	}
	key := verificationKey{reportID: reportID, userID: userID}
	if _, done := r.verifications[key]; done {
		return 0, ErrAlreadyVerified
	}
	r.verifications[key] = at
	report.VerificationCount++
	r.reports[reportID] = report
	return report.VerificationCount, nil
}

func (r *memoryRepository) VerifiedBy(_ context.Context, userID string, reportIDs []string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(reportIDs))
	for _, id := range reportIDs {
		if _, ok := r.verifications[verificationKey{reportID: id, userID: userID}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *memoryRepository) CountByAuthor(_ context.Context, authorID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, report := range r.reports {
		if report.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, report := range r.reports {
		if report.ExpiresAt.Before(cutoff) {
			r.deleteLocked(id)
			removed++
		}
	}
	return removed, nil
}

// deleteLocked must be called with the write lock held.
func (r *memoryRepository) deleteLocked(id string) {
	delete(r.reports, id)
	for key := range r.verifications {
		if key.reportID == id {
			delete(r.verifications, key)
		}
	}
}
