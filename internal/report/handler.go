package report

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scout-app/scout-api/internal/apperr"
	"github.com/scout-app/scout-api/internal/validation"
)

const (
	defaultRadiusKm = 5.0
	defaultLimit    = 50
)

// Handler exposes report endpoints.
type Handler struct {
	service  Service
	validate *validation.Validator
}

// NewHandler constructs a report HTTP handler.
func NewHandler(service Service, validate *validation.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

// Request structs only enforce the wire contract (presence, types and the
// paging bounds every backend shares). Value ranges belong to the Manager.
type listQuery struct {
	Latitude         *float64 `query:"latitude"`
	Longitude        *float64 `query:"longitude"`
	Radius           float64  `query:"radius"`
	Limit            int      `query:"limit" validate:"lte=100"`
	Offset           int      `query:"offset" validate:"gte=0"`
	MinVerifications int      `query:"min_verifications" validate:"gte=0"`
}

type createRequest struct {
	Latitude      *float64 `json:"latitude" validate:"required"`
	Longitude     *float64 `json:"longitude" validate:"required"`
	LocationName  *string  `json:"location_name" validate:"required"`
	TransportLine *string  `json:"transport_line"`
	Description   *string  `json:"description"`
	IsAnonymous   bool     `json:"is_anonymous"`
}

type updateRequest struct {
	LocationName  *string `json:"location_name"`
	TransportLine *string `json:"transport_line"`
	Description   *string `json:"description"`
}

type reportResponse struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Username          string    `json:"username"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	LocationName      string    `json:"location_name"`
	TransportLine     *string   `json:"transport_line"`
	Description       *string   `json:"description"`
	VerificationCount int       `json:"verification_count"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	IsVerifiedByMe    bool      `json:"is_verified_by_me"`
}

type listResponse struct {
	Reports []reportResponse `json:"reports"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type verifyResponse struct {
	ID                string `json:"id"`
	VerificationCount int    `json:"verification_count"`
	IsVerifiedByMe    bool   `json:"is_verified_by_me"`
}

// List returns active reports, optionally near a coordinate.
func (h *Handler) List(c *fiber.Ctx) error {
	q := listQuery{Radius: defaultRadiusKm, Limit: defaultLimit}
	if err := c.QueryParser(&q); err != nil {
		return apperr.Unprocessable(err)
	}
	if err := h.validate.Struct(q); err != nil {
		return err
	}

	page, err := h.service.List(c.UserContext(), Query{
		Latitude:         q.Latitude,
		Longitude:        q.Longitude,
		RadiusKm:         q.Radius,
		Limit:            q.Limit,
		Offset:           q.Offset,
		MinVerifications: q.MinVerifications,
		ViewerID:         viewer(c),
	})
	if err != nil {
		return mapError(err)
	}
	resp := listResponse{
		Reports: make([]reportResponse, 0, len(page.Reports)),
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
	for _, v := range page.Reports {
		resp.Reports = append(resp.Reports, toResponse(v))
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Create submits a new sighting for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Unprocessable(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	view, err := h.service.Create(c.UserContext(), CreateInput{
		AuthorID:      viewer(c),
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		LocationName:  *req.LocationName,
		TransportLine: req.TransportLine,
		Description:   req.Description,
		Anonymous:     req.IsAnonymous,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(view))
}

// Get returns one report.
func (h *Handler) Get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), c.Params("id"), viewer(c))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(view))
}

// Update edits a report owned by the authenticated user.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Unprocessable(err)
		}
	}
	view, err := h.service.Update(c.UserContext(), UpdateInput{
		ID:            c.Params("id"),
		AuthorID:      viewer(c),
		LocationName:  req.LocationName,
		TransportLine: req.TransportLine,
		Description:   req.Description,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(view))
}

// Verify corroborates a report.
func (h *Handler) Verify(c *fiber.Ctx) error {
	result, err := h.service.Verify(c.UserContext(), c.Params("id"), viewer(c))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(verifyResponse{
		ID:                result.ReportID,
		VerificationCount: result.VerificationCount,
		IsVerifiedByMe:    result.VerifiedByMe,
	})
}

// Delete removes a report owned by the authenticated user.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id"), viewer(c)); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func viewer(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func toResponse(v View) reportResponse {
	return reportResponse{
		ID:                v.ID,
		UserID:            v.AuthorID,
		Username:          v.AuthorName,
		Latitude:          v.Latitude,
		Longitude:         v.Longitude,
		LocationName:      v.LocationName,
		TransportLine:     v.TransportLine,
		Description:       v.Description,
		VerificationCount: v.VerificationCount,
		CreatedAt:         v.CreatedAt,
		ExpiresAt:         v.ExpiresAt,
		IsVerifiedByMe:    v.VerifiedByMe,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExpired):
		return fiber.NewError(http.StatusGone, err.Error())
	case errors.Is(err, ErrNotAuthor), errors.Is(err, ErrSelfVerification):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyVerified):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return err
	}
}
