package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/domain"
	"github.com/persistorai/credsync/internal/models"
)

// CredentialHandler serves saved credential endpoints.
type CredentialHandler struct {
	svc domain.CredentialService
	log *logrus.Logger
}

// NewCredentialHandler creates a CredentialHandler.
func NewCredentialHandler(svc domain.CredentialService, log *logrus.Logger) *CredentialHandler {
	return &CredentialHandler{svc: svc, log: log}
}

// List handles GET /api/v1/credentials. Passwords are never returned.
func (h *CredentialHandler) List(c *gin.Context) {
	ownerID := getOwnerID(c)
	if ownerID == "" {
		return
	}

	creds, err := h.svc.ListCredentials(c.Request.Context(), ownerID)
	if err != nil {
		h.log.WithError(err).Error("listing credentials")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if creds == nil {
		creds = []models.SavedRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"credentials": creds})
}

// SetIgnored handles PUT /api/v1/credentials/:id/ignored.
func (h *CredentialHandler) SetIgnored(c *gin.Context) {
	id, err := parseRecordID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	ownerID := getOwnerID(c)
	if ownerID == "" {
		return
	}

	var req models.SetIgnoredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)

		return
	}

	if err := h.svc.SetIgnored(c.Request.Context(), ownerID, id, req.Ignored); err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "credential not found")

			return
		}

		h.log.WithError(err).Error("setting ignored flag")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "ignored": req.Ignored})
}
