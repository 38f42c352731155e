// Automation HTTP handler.
//
//   - POST /automations/{capability}/run (manual trigger)
//
// auto_reply polls the caller's chat credentials once; mail processes the
// caller's unread mailbox once. Both honor the automation gate.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/pollers"
	"github.com/tbourn/inbound-bridge/internal/redact"
	"github.com/tbourn/inbound-bridge/internal/services"
)

// RunAutomationResponse reports a manual run.
type RunAutomationResponse struct {
	Capability domain.AutomationKind `json:"capability"`
	Mail       *pollers.MailRun      `json:"mail,omitempty"`
}

// RunAutomation godoc
// @ID          runAutomation
// @Summary     Run an automation now
// @Description Triggers one run of the caller's automation outside the schedule:
// @Description auto_reply polls the caller's bots, mail processes unread mail.
// @Tags        Automations
// @Produce     json
//
// @Param       X-User-ID   header  string  true  "User ID that owns the automation"  example(user123)
// @Param       capability  path    string  true  "Automation"  Enums(auto_reply, mail)
//
// @Success     200  {object}  handlers.RunAutomationResponse  "Run result"
// @Failure     400  {object}  handlers.ErrorResponse          "Unknown capability"
// @Failure     401  {object}  handlers.ErrorResponse          "Missing X-User-ID"
// @Failure     404  {object}  handlers.ErrorResponse          "Automation not found"
// @Failure     409  {object}  handlers.ErrorResponse          "Inactive, busy, or reconnect required"
// @Failure     502  {object}  handlers.ErrorResponse          "Upstream or dispatch failure"
// @Router      /automations/{capability}/run [post]
func (h *Handlers) RunAutomation(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		return
	}
	ctx := c.Request.Context()
	kind := domain.AutomationKind(c.Param("capability"))

	switch kind {
	case domain.AutomationAutoReply:
		a, err := h.gate.Config(ctx, uid, kind)
		if err != nil {
			gateFail(c, err)
			return
		}
		if !a.Active() {
			fail(c, http.StatusConflict, ErrCodeAutomationInactive, "automation is not active")
			return
		}
		if err := h.chat.PollUser(ctx, uid); err != nil {
			fail(c, http.StatusBadGateway, ErrCodeRunFailed, redact.Error(err))
			return
		}
		ok(c, http.StatusOK, RunAutomationResponse{Capability: kind})

	case domain.AutomationMail:
		run, err := h.mail.RunNow(ctx, uid)
		switch {
		case err == nil:
			ok(c, http.StatusOK, RunAutomationResponse{Capability: kind, Mail: &run})
		case errors.Is(err, services.ErrAutomationNotFound):
			gateFail(c, err)
		case errors.Is(err, pollers.ErrAutomationInactive):
			fail(c, http.StatusConflict, ErrCodeAutomationInactive, "automation is not active")
		case errors.Is(err, pollers.ErrUserBusy):
			fail(c, http.StatusConflict, ErrCodeRunBusy, "a mail run is already in progress")
		case errors.Is(err, domain.ErrCredentialMissing), errors.Is(err, domain.ErrDecryption):
			fail(c, http.StatusConflict, ErrCodeReconnectRequired, pollers.RemediationHint(err))
		default:
			msg := redact.Error(err)
			if hint := pollers.RemediationHint(err); hint != "" {
				msg = hint
			}
			fail(c, http.StatusBadGateway, ErrCodeRunFailed, msg)
		}

	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown capability")
	}
}

func gateFail(c *gin.Context, err error) {
	if errors.Is(err, services.ErrAutomationNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "automation not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
