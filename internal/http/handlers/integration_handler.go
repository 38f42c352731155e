// Integration HTTP handlers.
//
//   - GET    /integrations            (connection state per platform)
//   - DELETE /integrations/{platform} (disconnect, keeps the record)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/services"
)

// ListIntegrationsResponse wraps the caller's integrations. Secrets are
// never part of it.
type ListIntegrationsResponse struct {
	Integrations []services.IntegrationStatus `json:"integrations"`
}

// ListIntegrations godoc
// @ID          listIntegrations
// @Summary     List the caller's integrations
// @Description Returns one entry per connected platform with its capabilities and
// @Description reconnect state. Sealed secrets are never included.
// @Tags        Integrations
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID that owns the integrations"  example(user123)
//
// @Success     200  {object}  handlers.ListIntegrationsResponse  "Integrations"
// @Failure     401  {object}  handlers.ErrorResponse             "Missing X-User-ID"
// @Failure     500  {object}  handlers.ErrorResponse             "Internal error"
// @Router      /integrations [get]
func (h *Handlers) ListIntegrations(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		return
	}
	items, err := h.integrations.List(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListIntegrationsResponse{Integrations: items})
}

// DisconnectIntegration godoc
// @ID          disconnectIntegration
// @Summary     Disconnect one platform
// @Description Clears the sealed secrets of the platform record and marks it
// @Description disconnected. The row is kept for the activity history.
// @Tags        Integrations
//
// @Param       X-User-ID  header  string  true  "User ID that owns the integration"  example(user123)
// @Param       platform   path    string  true  "Platform"  Enums(telegram, gmail, google)
//
// @Success     204  "Disconnected"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown platform"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing X-User-ID"
// @Failure     404  {object}  handlers.ErrorResponse  "Integration not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /integrations/{platform} [delete]
func (h *Handlers) DisconnectIntegration(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		return
	}
	platform := domain.Platform(c.Param("platform"))
	err := h.integrations.Disconnect(c.Request.Context(), uid, platform)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrUnknownPlatform):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown platform")
	case errors.Is(err, services.ErrIntegrationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "integration not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeDisconnectFailed, err.Error())
	}
}
