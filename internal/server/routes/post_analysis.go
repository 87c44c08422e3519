package routes

import (
	"encoding/json"
	"net/http"

	"github.com/givance/webserver-sub009/internal/queue"
	"github.com/givance/webserver-sub009/internal/server/middleware"
	"github.com/givance/webserver-sub009/internal/server/util"
	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AnalyzeDonorsHandler runs the lifecycle analysis for the given donors, or
// queues it when async is set.
func AnalyzeDonorsHandler(c echo.Context) error {
	type analyzeBody struct {
		DonorIDs []string `json:"donor_ids" validate:"required,min=1,dive,required"`
		Async    bool     `json:"async"`
	}

	type analyzeResponse struct {
		Message       string                `json:"message,omitempty"`
		CorrelationID string                `json:"correlation_id,omitempty"`
		Result        *analysis.BatchResult `json:"result,omitempty"`
	}

	orgID := c.Param("org_id")
	data := new(analyzeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, analyzeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, analyzeResponse{
			Message: "Invalid request body",
		})
	}

	cc := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	if data.Async {
		if cc.App.Queue == nil {
			return c.JSON(http.StatusServiceUnavailable, analyzeResponse{
				Message: "Queue unavailable",
			})
		}
		graph, err := cc.App.Journeys.GetDonorJourneyGraph(ctx, orgID)
		if err != nil {
			logger.Error("[Server] Failed to load journey", "organization_id", orgID, "err", err)
			return c.JSON(http.StatusInternalServerError, analyzeResponse{
				Message: "Internal server error",
			})
		}
		if graph == nil {
			status, msg := util.StatusForError(analysis.ErrJourneyNotFound)
			return c.JSON(status, analyzeResponse{Message: msg})
		}

		correlationID, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, analyzeResponse{
				Message: "Internal server error",
			})
		}
		payload, err := json.Marshal(queue.QueueAnalysisMsg{
			CorrelationID:  correlationID,
			OrganizationID: orgID,
			DonorIDs:       data.DonorIDs,
			RequestedBy:    cc.User.UserID,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, analyzeResponse{
				Message: "Internal server error",
			})
		}
		if err := cc.App.Queue.PublishFIFO(queue.AnalysisQueue, payload); err != nil {
			logger.Error("[Server] Failed to queue analysis", "organization_id", orgID, "err", err)
			return c.JSON(http.StatusInternalServerError, analyzeResponse{
				Message: "Internal server error",
			})
		}
		return c.JSON(http.StatusAccepted, analyzeResponse{
			Message:       "Analysis queued",
			CorrelationID: correlationID,
		})
	}

	result, err := cc.App.Analyzer.AnalyzeDonors(ctx, data.DonorIDs, orgID, cc.User.UserID)
	if err != nil {
		logger.Error("[Server] Donor analysis failed", "organization_id", orgID, "err", err)
		status, msg := util.StatusForError(err)
		return c.JSON(status, analyzeResponse{Message: msg})
	}

	return c.JSON(http.StatusOK, analyzeResponse{Result: result})
}
