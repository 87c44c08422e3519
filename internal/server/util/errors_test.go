package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/lifecycle"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"journey missing", fmt.Errorf("%w: org1", analysis.ErrJourneyNotFound), http.StatusNotFound},
		{"invalid graph", fmt.Errorf("%w: nodes[0]: missing id", journey.ErrInvalidGraph), http.StatusBadRequest},
		{"malformed model output", fmt.Errorf("generate: %w", lifecycle.ErrMalformedResponse), http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, 499},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, msg := StatusForError(tc.err)
			if got != tc.want {
				t.Fatalf("StatusForError() = %d, want %d", got, tc.want)
			}
			if msg == "" {
				t.Fatalf("empty message")
			}
		})
	}
}
