package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scout-app/scout-api/internal/notification"
	"github.com/scout-app/scout-api/internal/user"
	"github.com/scout-app/scout-api/internal/validation"
)

var (
	// ErrNotFound is returned when no report matches the identifier.
	ErrNotFound = errors.New("report not found")
	// ErrExpired is returned for reports past their validity window.
	ErrExpired = errors.New("report has expired")
	// ErrNotAuthor is returned when someone other than the author edits a report.
	ErrNotAuthor = errors.New("only the author can modify this report")
	// ErrSelfVerification is returned when an author verifies their own report.
	ErrSelfVerification = errors.New("cannot verify your own report")
	// ErrAlreadyVerified is returned when the user already verified the report.
	ErrAlreadyVerified = errors.New("report already verified by this user")
)

// Service is the report surface used by the HTTP handler.
type Service interface {
	List(ctx context.Context, q Query) (Page, error)
	Create(ctx context.Context, in CreateInput) (View, error)
	Get(ctx context.Context, id, viewerID string) (View, error)
	Update(ctx context.Context, in UpdateInput) (View, error)
	Verify(ctx context.Context, id, userID string) (Verification, error)
	Delete(ctx context.Context, id, userID string) error
}

// Authors resolves author usernames.
type Authors interface {
	FindByID(ctx context.Context, id string) (user.User, error)
}

// Recorder receives domain events for metrics.
type Recorder interface {
	ReportCreated()
	ReportVerified()
	ReportsPurged(n int64)
}

// Manager implements Service on top of a Repository.
type Manager struct {
	repo     Repository
	authors  Authors
	ttl      time.Duration
	notifier notification.Notifier
	recorder Recorder
	logger   *slog.Logger
	validate *validation.Validator
	now      func() time.Time
}

// NewManager builds a report manager. notifier, recorder and logger may be nil.
func NewManager(repo Repository, authors Authors, ttl time.Duration, notifier notification.Notifier, recorder Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		repo:     repo,
		authors:  authors,
		ttl:      ttl,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		validate: validation.New(),
		now:      time.Now,
	}
}

// List returns active reports matching q, newest first.
func (m *Manager) List(ctx context.Context, q Query) (Page, error) {
	if err := m.validate.Struct(q); err != nil {
		return Page{}, err
	}
	reports, total, err := m.repo.List(ctx, Filter{
		Now:              m.now().UTC(),
		Center:           q.Center(),
		RadiusKm:         q.RadiusKm,
		Limit:            q.Limit,
		Offset:           q.Offset,
		MinVerifications: q.MinVerifications,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list reports: %w", err)
	}

	verified := map[string]bool{}
	if q.ViewerID != "" && len(reports) > 0 {
		ids := make([]string, len(reports))
		for i, r := range reports {
			ids[i] = r.ID
		}
		if verified, err = m.repo.VerifiedBy(ctx, q.ViewerID, ids); err != nil {
			return Page{}, fmt.Errorf("load verifications: %w", err)
		}
	}

	names := map[string]string{}
	views := make([]View, 0, len(reports))
	for _, r := range reports {
		name, ok := names[r.AuthorID]
		if !ok {
			name = m.authorName(ctx, r.AuthorID)
			names[r.AuthorID] = name
		}
		views = append(views, present(r, name, q.ViewerID, verified[r.ID]))
	}
	return Page{Reports: views, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// Create records a new sighting that stays active for the configured TTL.
func (m *Manager) Create(ctx context.Context, in CreateInput) (View, error) {
	in.LocationName = strings.TrimSpace(in.LocationName)
	in.TransportLine = trimmed(in.TransportLine)
	in.Description = trimmed(in.Description)
	if err := m.validate.Struct(in); err != nil {
		return View{}, err
	}

	now := m.now().UTC()
	r := Report{
		ID:            uuid.NewString(),
		AuthorID:      in.AuthorID,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		LocationName:  in.LocationName,
		TransportLine: in.TransportLine,
		Description:   in.Description,
		Anonymous:     in.Anonymous,
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.ttl),
	}
	if err := m.repo.Create(ctx, r); err != nil {
		return View{}, fmt.Errorf("create report: %w", err)
	}
	if m.recorder != nil {
		m.recorder.ReportCreated()
	}
	return present(r, m.authorName(ctx, r.AuthorID), in.AuthorID, false), nil
}

// Get returns an active report as seen by viewerID, which may be empty.
func (m *Manager) Get(ctx context.Context, id, viewerID string) (View, error) {
	r, err := m.active(ctx, id)
	if err != nil {
		return View{}, err
	}
	verified := false
	if viewerID != "" {
		set, err := m.repo.VerifiedBy(ctx, viewerID, []string{r.ID})
		if err != nil {
			return View{}, fmt.Errorf("load verifications: %w", err)
		}
		verified = set[r.ID]
	}
	return present(r, m.authorName(ctx, r.AuthorID), viewerID, verified), nil
}

// Update edits the descriptive fields of an active report. Only the author may edit.
func (m *Manager) Update(ctx context.Context, in UpdateInput) (View, error) {
	in.LocationName = trimmedKeep(in.LocationName)
	in.TransportLine = trimmedKeep(in.TransportLine)
	in.Description = trimmedKeep(in.Description)
	if err := m.validate.Struct(in); err != nil {
		return View{}, err
	}

	r, err := m.active(ctx, in.ID)
	if err != nil {
		return View{}, err
	}
	if r.AuthorID != in.AuthorID {
		return View{}, ErrNotAuthor
	}
	if in.LocationName != nil {
		r.LocationName = *in.LocationName
	}
	if in.TransportLine != nil {
		r.TransportLine = trimmed(in.TransportLine)
	}
	if in.Description != nil {
		r.Description = trimmed(in.Description)
	}
	if err := m.repo.Update(ctx, r); err != nil {
		return View{}, err
	}
	return m.Get(ctx, r.ID, in.AuthorID)
}

// Verify lets a user other than the author corroborate an active report once.
func (m *Manager) Verify(ctx context.Context, id, userID string) (Verification, error) {
	r, err := m.active(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	if r.AuthorID == userID {
		return Verification{}, ErrSelfVerification
	}

	count, err := m.repo.AddVerification(ctx, r.ID, userID, m.now().UTC())
	if err != nil {
		return Verification{}, err
	}
	if m.recorder != nil {
		m.recorder.ReportVerified()
	}
	m.notify(ctx, r, count)
	return Verification{ReportID: r.ID, VerificationCount: count, VerifiedByMe: true}, nil
}

// Delete removes a report. Expired reports may still be deleted by their author.
func (m *Manager) Delete(ctx context.Context, id, userID string) error {
	r, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.AuthorID != userID {
		return ErrNotAuthor
	}
	return m.repo.Delete(ctx, id)
}

// CountByAuthor satisfies user.ReportCounter.
func (m *Manager) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	return m.repo.CountByAuthor(ctx, authorID)
}

// PurgeExpired deletes reports that expired more than retention ago.
func (m *Manager) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := m.repo.DeleteExpiredBefore(ctx, m.now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge expired reports: %w", err)
	}
	if m.recorder != nil && removed > 0 {
		m.recorder.ReportsPurged(removed)
	}
	return removed, nil
}

func (m *Manager) active(ctx context.Context, id string) (Report, error) {
	r, err := m.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !r.ActiveAt(m.now()) {
		return Report{}, ErrExpired
	}
	return r, nil
}

func (m *Manager) authorName(ctx context.Context, authorID string) string {
	if m.authors == nil {
		return ""
	}
	u, err := m.authors.FindByID(ctx, authorID)
	if err != nil {
		return ""
	}
	return u.Username
}

func (m *Manager) notify(ctx context.Context, r Report, count int) {
	if m.notifier == nil {
		return
	}
	err := m.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindReportVerified,
		Destination: r.AuthorID,
		Body:        fmt.Sprintf("your report at %s now has %d verification(s)", r.LocationName, count),
	})
	if err != nil && m.logger != nil {
		m.logger.Warn("notify report author", slog.String("report_id", r.ID), slog.Any("error", err))
	}
}

// present hides the author of anonymous reports from everyone but the author.
func present(r Report, authorName, viewerID string, verified bool) View {
	v := View{Report: r, AuthorName: authorName, VerifiedByMe: verified}
	if r.Anonymous && r.AuthorID != viewerID {
		v.AuthorID = ""
		v.AuthorName = AnonymousName
	}
	return v
}

// trimmedKeep trims s but keeps an empty result, so "clear this field"
// stays distinguishable from "leave it alone".
func trimmedKeep(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
