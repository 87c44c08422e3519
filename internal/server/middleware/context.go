package middleware

import (
	"context"

	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/store"

	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID string
}

type Analyzer interface {
	AnalyzeDonors(ctx context.Context, donorIDs []string, organizationID string, requestingUserID string) (*analysis.BatchResult, error)
}

type JourneyGenerator interface {
	Generate(ctx context.Context, description string) (*journey.Graph, error)
}

// Enqueuer puts work on a queue; nil disables the async variants.
type Enqueuer interface {
	PublishFIFO(queueName string, data []byte) error
}

type App struct {
	Analyzer  Analyzer
	Generator JourneyGenerator
	Journeys  store.JourneyStore
	Queue     Enqueuer
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
