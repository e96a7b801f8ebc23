package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scout-app/scout-api/internal/geo"
	"github.com/scout-app/scout-api/internal/notification"
	"github.com/scout-app/scout-api/internal/user"
	"github.com/scout-app/scout-api/internal/validation"
)

var (
	flindersStreet = geo.Point{Lat: -37.8183, Lon: 144.9671}
	southernCross  = geo.Point{Lat: -37.8184, Lon: 144.9525}
	geelong        = geo.Point{Lat: -38.1444, Lon: 144.3556}
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

type countingRecorder struct {
	created, verified int
	purged            int64
}

func (r *countingRecorder) ReportCreated()        { r.created++ }
func (r *countingRecorder) ReportVerified()       { r.verified++ }
func (r *countingRecorder) ReportsPurged(n int64) { r.purged += n }

type fixture struct {
	svc      *Manager
	notifier *recordingNotifier
	recorder *countingRecorder
	now      time.Time
	alice    string
	bob      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := user.NewMemoryRepository()
	ctx := context.Background()
	f := &fixture{
		notifier: &recordingNotifier{},
		recorder: &countingRecorder{},
		now:      time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		alice:    "11111111-1111-1111-1111-111111111111",
		bob:      "22222222-2222-2222-2222-222222222222",
	}
	for id, name := range map[string]string{f.alice: "alice", f.bob: "bob"} {
		if err := users.Create(ctx, user.User{ID: id, Username: name, Email: name + "@example.com"}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	f.svc = NewManager(NewMemoryRepository(), users, time.Hour, f.notifier, f.recorder, nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T, author string, at geo.Point, name string, anonymous bool) View {
	t.Helper()
	v, err := f.svc.Create(context.Background(), CreateInput{
		AuthorID:     author,
		Latitude:     at.Lat,
		Longitude:    at.Lon,
		LocationName: name,
		Anonymous:    anonymous,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	f.now = f.now.Add(time.Minute)
	return v
}

func TestCreateSetsExpiry(t *testing.T) {
	f := newFixture(t)
	created := f.now

	v := f.create(t, f.alice, flindersStreet, "  Flinders Street  ", false)
	if v.LocationName != "Flinders Street" {
		t.Fatalf("expected trimmed location, got %q", v.LocationName)
	}
	if !v.ExpiresAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("expected expiry %s, got %s", created.Add(time.Hour), v.ExpiresAt)
	}
	if v.AuthorName != "alice" || v.VerificationCount != 0 {
		t.Fatalf("unexpected view %+v", v)
	}
	if f.recorder.created != 1 {
		t.Fatalf("expected one created event, got %d", f.recorder.created)
	}
}

func TestListFiltersByDistanceNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, f.alice, flindersStreet, "Flinders Street", false)
	second := f.create(t, f.bob, southernCross, "Southern Cross", false)
	f.create(t, f.bob, geelong, "Geelong", false)

	page, err := f.svc.List(context.Background(), Query{Latitude: &flindersStreet.Lat, Longitude: &flindersStreet.Lon, RadiusKm: 5, Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Reports) != 2 {
		t.Fatalf("expected 2 nearby reports, got total=%d len=%d", page.Total, len(page.Reports))
	}
	if page.Reports[0].ID != second.ID || page.Reports[1].ID != first.ID {
		t.Fatal("expected newest report first")
	}

	all, err := f.svc.List(context.Background(), Query{RadiusKm: 5, Limit: 50})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected 3 reports without a centre, got %d", all.Total)
	}
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t, f.alice, flindersStreet, "Flinders Street", false)
	}

	page, err := f.svc.List(context.Background(), Query{RadiusKm: 5, Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Reports) != 1 || page.Limit != 2 || page.Offset != 4 {
		t.Fatalf("unexpected page total=%d len=%d", page.Total, len(page.Reports))
	}

	page, err = f.svc.List(context.Background(), Query{RadiusKm: 5, Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if page.Total != 5 || len(page.Reports) != 0 {
		t.Fatalf("expected empty page with total 5, got total=%d len=%d", page.Total, len(page.Reports))
	}
}

func TestVerifyLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.alice, flindersStreet, "Flinders Street", false)

	if _, err := f.svc.Verify(ctx, r.ID, f.alice); !errors.Is(err, ErrSelfVerification) {
		t.Fatalf("expected self verification error, got %v", err)
	}

	result, err := f.svc.Verify(ctx, r.ID, f.bob)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.VerificationCount != 1 || !result.VerifiedByMe {
		t.Fatalf("unexpected verification %+v", result)
	}

	if _, err := f.svc.Verify(ctx, r.ID, f.bob); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected duplicate verification error, got %v", err)
	}

	seen, err := f.svc.Get(ctx, r.ID, f.bob)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !seen.VerifiedByMe || seen.VerificationCount != 1 {
		t.Fatalf("expected verified view, got %+v", seen)
	}

	page, err := f.svc.List(ctx, Query{RadiusKm: 5, Limit: 10, MinVerifications: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected report to pass min_verifications filter, got %d", page.Total)
	}

	if len(f.notifier.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifier.messages))
	}
	msg := f.notifier.messages[0]
	if msg.Kind != notification.KindReportVerified || msg.Destination != f.alice {
		t.Fatalf("unexpected notification %+v", msg)
	}
}

func TestExpiredReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.alice, flindersStreet, "Flinders Street", false)

	f.now = f.now.Add(2 * time.Hour)

	if _, err := f.svc.Get(ctx, r.ID, ""); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
	if _, err := f.svc.Verify(ctx, r.ID, f.bob); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired error on verify, got %v", err)
	}
	page, err := f.svc.List(ctx, Query{RadiusKm: 5, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected expired report hidden, got %d", page.Total)
	}

	removed, err := f.svc.PurgeExpired(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 || f.recorder.purged != 1 {
		t.Fatalf("expected one purged report, got %d", removed)
	}
	if _, err := f.svc.Get(ctx, r.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected purged report to be gone, got %v", err)
	}
}

func TestAnonymousReportsHideAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.alice, flindersStreet, "Flinders Street", true)

	public, err := f.svc.Get(ctx, r.ID, f.bob)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if public.AuthorID != "" || public.AuthorName != AnonymousName {
		t.Fatalf("expected masked author, got %q / %q", public.AuthorID, public.AuthorName)
	}

	own, err := f.svc.Get(ctx, r.ID, f.alice)
	if err != nil {
		t.Fatalf("get own: %v", err)
	}
	if own.AuthorID != f.alice || own.AuthorName != "alice" {
		t.Fatalf("expected author to see themselves, got %q / %q", own.AuthorID, own.AuthorName)
	}

	count, err := f.svc.CountByAuthor(ctx, f.alice)
	if err != nil || count != 1 {
		t.Fatalf("expected anonymous report counted for author, got %d (%v)", count, err)
	}
}

func TestOnlyAuthorEditsAndDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.alice, flindersStreet, "Flinders Street", false)

	line := "Sandringham"
	if _, err := f.svc.Update(ctx, UpdateInput{ID: r.ID, AuthorID: f.bob, TransportLine: &line}); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected not author on update, got %v", err)
	}
	updated, err := f.svc.Update(ctx, UpdateInput{ID: r.ID, AuthorID: f.alice, TransportLine: &line})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TransportLine == nil || *updated.TransportLine != line || updated.LocationName != "Flinders Street" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if err := f.svc.Delete(ctx, r.ID, f.bob); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected not author on delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, r.ID, f.alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Delete(ctx, r.ID, f.alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestConcurrentVerificationsCountOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.alice, flindersStreet, "Flinders Street", false)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.repo.AddVerification(ctx, r.ID, f.bob, f.now)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrAlreadyVerified) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", ok)
	}
	got, err := f.svc.Get(ctx, r.ID, "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VerificationCount != 1 {
		t.Fatalf("expected count 1, got %d", got.VerificationCount)
	}
}

func validationTags(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	tags := map[string]string{}
	for _, fe := range verrs {
		tags[fe.Field] = fe.Tag
	}
	return tags
}

func TestCreateTrimsBeforeValidating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{AuthorID: f.alice, Latitude: flindersStreet.Lat, Longitude: flindersStreet.Lon, LocationName: "    "})
	if tags := validationTags(t, err); tags["location_name"] != "required" {
		t.Fatalf("expected blank location_name rejected, got %v", tags)
	}

	line := "   "
	v, err := f.svc.Create(ctx, CreateInput{AuthorID: f.alice, Latitude: flindersStreet.Lat, Longitude: flindersStreet.Lon, LocationName: "  Flinders Street  ", TransportLine: &line})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.LocationName != "Flinders Street" || v.TransportLine != nil {
		t.Fatalf("expected trimmed fields, got %q %v", v.LocationName, v.TransportLine)
	}
}

func TestCreateRejectsOutOfRangeInput(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", 51)

	_, err := f.svc.Create(context.Background(), CreateInput{AuthorID: f.alice, Latitude: 91, Longitude: 181, LocationName: "Nowhere", TransportLine: &long})
	tags := validationTags(t, err)
	if tags["latitude"] != "lte" || tags["longitude"] != "lte" || tags["transport_line"] != "max" {
		t.Fatalf("unexpected validation tags %v", tags)
	}
	if f.recorder.created != 0 {
		t.Fatal("rejected report must not be recorded")
	}
}

func TestUpdateRejectsBlankLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.alice, flindersStreet, "Flinders Street", false)

	blank := "   "
	_, err := f.svc.Update(ctx, UpdateInput{ID: r.ID, AuthorID: f.alice, LocationName: &blank})
	if tags := validationTags(t, err); tags["location_name"] != "min" {
		t.Fatalf("expected blank location_name rejected, got %v", tags)
	}

	padded := "  Southern Cross "
	updated, err := f.svc.Update(ctx, UpdateInput{ID: r.ID, AuthorID: f.alice, LocationName: &padded, Description: &blank})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.LocationName != "Southern Cross" || updated.Description != nil {
		t.Fatalf("unexpected update result %q %v", updated.LocationName, updated.Description)
	}
}

func TestListValidatesQuery(t *testing.T) {
	f := newFixture(t)
	lat := flindersStreet.Lat

	tests := []struct {
		name  string
		query Query
		field string
		tag   string
	}{
		{"latitude without longitude", Query{Latitude: &lat, RadiusKm: 5, Limit: 10}, "longitude", "required_with"},
		{"zero radius", Query{RadiusKm: 0, Limit: 10}, "radius", "gt"},
		{"radius too large", Query{RadiusKm: 250, Limit: 10}, "radius", "lte"},
		{"zero limit", Query{RadiusKm: 5, Limit: 0}, "limit", "gte"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.List(context.Background(), tc.query)
			if tags := validationTags(t, err); tags[tc.field] != tc.tag {
				t.Fatalf("expected %s to fail %s, got %v", tc.field, tc.tag, tags)
			}
		})
	}
}
