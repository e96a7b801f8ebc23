package report

import (
	"context"

	"github.com/scout-app/scout-api/internal/apperr"
)

// Unimplemented answers every report call with a not-implemented error.
type Unimplemented struct{}

func (Unimplemented) List(context.Context, Query) (Page, error) {
	return Page{}, apperr.NotImplemented("Get reports")
}

func (Unimplemented) Create(context.Context, CreateInput) (View, error) {
	return View{}, apperr.NotImplemented("Create report")
}

func (Unimplemented) Get(context.Context, string, string) (View, error) {
	return View{}, apperr.NotImplemented("Get report by ID")
}

func (Unimplemented) Update(context.Context, UpdateInput) (View, error) {
	return View{}, apperr.NotImplemented("Update report")
}

func (Unimplemented) Verify(context.Context, string, string) (Verification, error) {
	return Verification{}, apperr.NotImplemented("Verify report")
}

func (Unimplemented) Delete(context.Context, string, string) error {
	return apperr.NotImplemented("Delete report")
}
