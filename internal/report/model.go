package report

import (
	"time"

	"github.com/scout-app/scout-api/internal/geo"
)

// AnonymousName replaces the author's username on anonymous reports.
const AnonymousName = "Anonymous"

// Report is a sighting of transit inspectors at a location.
type Report struct {
	ID                string
	AuthorID          string
	Latitude          float64
	Longitude         float64
	LocationName      string
	TransportLine     *string
	Description       *string
	Anonymous         bool
	VerificationCount int
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Point returns the report's coordinate.
func (r Report) Point() geo.Point {
	return geo.Point{Lat: r.Latitude, Lon: r.Longitude}
}

// ActiveAt reports whether r is still within its validity window at t.
func (r Report) ActiveAt(t time.Time) bool {
	return t.Before(r.ExpiresAt)
}

// View is a report as seen by a particular viewer.
type View struct {
	Report
	AuthorName   string
	VerifiedByMe bool
}

// Page is one page of a filtered report listing.
type Page struct {
	Reports []View
	Total   int
	Limit   int
	Offset  int
}

// Query filters a listing. Latitude and Longitude are optional but must be
// given together; when set only reports within RadiusKm of them are returned.
type Query struct {
	Latitude         *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	RadiusKm         float64  `json:"radius" validate:"gt=0,lte=100"`
	Limit            int      `json:"limit" validate:"gte=1,lte=100"`
	Offset           int      `json:"offset" validate:"gte=0"`
	MinVerifications int      `json:"min_verifications" validate:"gte=0"`
	ViewerID         string   `json:"-"`
}

// Center returns the search origin, or nil when the listing is not located.
func (q Query) Center() *geo.Point {
	if q.Latitude == nil || q.Longitude == nil {
		return nil
	}
	return &geo.Point{Lat: *q.Latitude, Lon: *q.Longitude}
}

// Filter is the repository-level form of Query, with the clock resolved.
type Filter struct {
	Now              time.Time
	Center           *geo.Point
	RadiusKm         float64
	Limit            int
	Offset           int
	MinVerifications int
}

// CreateInput captures a new sighting. Text fields are checked after
// surrounding whitespace is trimmed.
type CreateInput struct {
	AuthorID      string  `json:"-"`
	Latitude      float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64 `json:"longitude" validate:"gte=-180,lte=180"`
	LocationName  string  `json:"location_name" validate:"required,max=200"`
	TransportLine *string `json:"transport_line" validate:"omitempty,max=50"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	Anonymous     bool    `json:"is_anonymous"`
}

// UpdateInput holds optional edits; nil fields are left untouched and blank
// optional fields are cleared.
type UpdateInput struct {
	ID            string  `json:"-"`
	AuthorID      string  `json:"-"`
	LocationName  *string `json:"location_name" validate:"omitempty,min=1,max=200"`
	TransportLine *string `json:"transport_line" validate:"omitempty,max=50"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
}

// Verification is the outcome of corroborating a report.
type Verification struct {
	ReportID          string
	VerificationCount int
	VerifiedByMe      bool
}
