package routes

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/givance/webserver-sub009/internal/queue"
	"github.com/givance/webserver-sub009/internal/server/middleware"
	"github.com/givance/webserver-sub009/internal/server/util"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type journeyResponse struct {
	Message       string         `json:"message,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Graph         *journey.Graph `json:"graph,omitempty"`
}

func GetJourneyHandler(c echo.Context) error {
	orgID := c.Param("org_id")
	cc := c.(*middleware.AppContext)

	graph, err := cc.App.Journeys.GetDonorJourneyGraph(c.Request().Context(), orgID)
	if err != nil {
		logger.Error("[Server] Failed to load journey", "organization_id", orgID, "err", err)
		return c.JSON(http.StatusInternalServerError, journeyResponse{
			Message: "Internal server error",
		})
	}
	if graph == nil {
		return c.JSON(http.StatusNotFound, journeyResponse{
			Message: "Organization has no donor journey",
		})
	}
	return c.JSON(http.StatusOK, journeyResponse{Graph: graph})
}

// GenerateJourneyHandler turns a free-text description into the
// organization's journey, synchronously or through the journey queue.
func GenerateJourneyHandler(c echo.Context) error {
	// A blank description is valid and yields an empty journey.
	type generateBody struct {
		Description string `json:"description"`
		Async       bool   `json:"async"`
	}

	orgID := c.Param("org_id")
	data := new(generateBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, journeyResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, journeyResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	if data.Async {
		if cc.App.Queue == nil {
			return c.JSON(http.StatusServiceUnavailable, journeyResponse{
				Message: "Queue unavailable",
			})
		}
		correlationID, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, journeyResponse{
				Message: "Internal server error",
			})
		}
		payload, err := json.Marshal(queue.QueueJourneyMsg{
			CorrelationID:  correlationID,
			OrganizationID: orgID,
			Description:    data.Description,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, journeyResponse{
				Message: "Internal server error",
			})
		}
		if err := cc.App.Queue.PublishFIFO(queue.JourneyQueue, payload); err != nil {
			logger.Error("[Server] Failed to queue journey generation", "organization_id", orgID, "err", err)
			return c.JSON(http.StatusInternalServerError, journeyResponse{
				Message: "Internal server error",
			})
		}
		return c.JSON(http.StatusAccepted, journeyResponse{
			Message:       "Journey generation queued",
			CorrelationID: correlationID,
		})
	}

	graph, err := cc.App.Generator.Generate(ctx, data.Description)
	if err != nil {
		logger.Error("[Server] Journey generation failed", "organization_id", orgID, "err", err)
		return c.JSON(http.StatusBadGateway, journeyResponse{
			Message: "Journey generation failed",
		})
	}
	if err := cc.App.Journeys.ReplaceDonorJourneyGraph(ctx, orgID, data.Description, graph); err != nil {
		logger.Error("[Server] Failed to store journey", "organization_id", orgID, "err", err)
		status, msg := util.StatusForError(err)
		return c.JSON(status, journeyResponse{Message: msg})
	}

	return c.JSON(http.StatusOK, journeyResponse{Graph: graph})
}

// PutJourneyHandler stores a hand-edited graph after validating it.
func PutJourneyHandler(c echo.Context) error {
	orgID := c.Param("org_id")
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, journeyResponse{
			Message: "Invalid request body",
		})
	}

	graph, err := journey.Decode(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, journeyResponse{
			Message: err.Error(),
		})
	}

	cc := c.(*middleware.AppContext)
	if err := cc.App.Journeys.ReplaceDonorJourneyGraph(c.Request().Context(), orgID, "", graph); err != nil {
		logger.Error("[Server] Failed to store journey", "organization_id", orgID, "err", err)
		status, msg := util.StatusForError(err)
		return c.JSON(status, journeyResponse{Message: msg})
	}

	return c.JSON(http.StatusOK, journeyResponse{Graph: graph})
}
