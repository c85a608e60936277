package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/domain"
	"github.com/persistorai/credsync/internal/models"
	"github.com/persistorai/credsync/internal/reconcile"
)

// ImportHandler serves the plan, apply and run history endpoints.
type ImportHandler struct {
	svc domain.ImportService
	log *logrus.Logger
}

// NewImportHandler creates an ImportHandler.
func NewImportHandler(svc domain.ImportService, log *logrus.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, log: log}
}

// bindImport parses and validates the records payload. It writes the error
// response itself and returns false on failure.
func bindImport(c *gin.Context) ([]models.IncomingRecord, bool) {
	var req models.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)

		return nil, false
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return nil, false
	}

	return req.Records, true
}

// respondImportError maps reconciliation failures to HTTP responses.
func (h *ImportHandler) respondImportError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusServiceUnavailable, ErrCodeCancelled, "reconciliation cancelled")
	case reconcile.IsInvariant(err):
		respondError(c, http.StatusInternalServerError, ErrCodeInvariant, "reconciliation aborted, nothing was written")
	default:
		h.log.WithError(err).Error(op)
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}

// Plan handles POST /api/v1/imports/plan.
func (h *ImportHandler) Plan(c *gin.Context) {
	ownerID := getOwnerID(c)
	if ownerID == "" {
		return
	}

	records, ok := bindImport(c)
	if !ok {
		return
	}

	report, err := h.svc.Plan(c.Request.Context(), ownerID, records)
	if err != nil {
		h.respondImportError(c, "planning import", err)

		return
	}

	c.JSON(http.StatusOK, report)
}

// Apply handles POST /api/v1/imports/apply[?dry_run=true].
func (h *ImportHandler) Apply(c *gin.Context) {
	ownerID := getOwnerID(c)
	if ownerID == "" {
		return
	}

	dryRun, err := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "dry_run must be a boolean")

		return
	}

	records, ok := bindImport(c)
	if !ok {
		return
	}

	res, err := h.svc.Apply(c.Request.Context(), ownerID, records, models.ApplyOptions{DryRun: dryRun})
	if err != nil {
		h.respondImportError(c, "applying import", err)

		return
	}

	c.JSON(http.StatusOK, res)
}

// Runs handles GET /api/v1/imports/runs.
func (h *ImportHandler) Runs(c *gin.Context) {
	ownerID := getOwnerID(c)
	if ownerID == "" {
		return
	}

	limit := parseLimit(c.DefaultQuery("limit", "20"), 20)

	runs, err := h.svc.ListRuns(c.Request.Context(), ownerID, limit)
	if err != nil {
		h.log.WithError(err).Error("listing import runs")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if runs == nil {
		runs = []models.ImportRun{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
