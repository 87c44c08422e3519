package util

import (
	"context"
	"errors"
	"net/http"

	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/lifecycle"
)

// StatusForError maps a service error to an HTTP status and a message that is
// safe to show to clients.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrJourneyNotFound):
		return http.StatusNotFound, "Organization has no donor journey"
	case errors.Is(err, journey.ErrInvalidGraph):
		return http.StatusBadRequest, "Invalid journey graph"
	case errors.Is(err, lifecycle.ErrMalformedResponse):
		return http.StatusBadGateway, "Model returned an unusable response"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	case errors.Is(err, context.Canceled):
		return 499, "Request canceled"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
