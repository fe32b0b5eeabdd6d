package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/slackmgr/integrations/service"
	"github.com/slackmgr/integrations/types"
)

// EventsHandler serves the Slack Events API endpoint. It exists for
// the install lifecycle: when a workspace uninstalls the app or
// revokes its tokens, Slack notifies this endpoint and the stored
// installation and credential are removed.
type EventsHandler struct {
	oauth         *service.OAuthService
	signingSecret string
	logger        types.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(oauth *service.OAuthService, signingSecret string, logger types.Logger) *EventsHandler {
	return &EventsHandler{oauth: oauth, signingSecret: signingSecret, logger: logger}
}

// Handle handles POST /slack/events. Requests must carry a valid
// Slack signature; url_verification challenges are echoed back.
func (h *EventsHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.verifySignature(c.Request.Header, body); err != nil {
		h.logger.WithError(err).Warn("Rejected Slack event with bad signature")
		c.Status(http.StatusUnauthorized)

		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.WithError(err).Warn("Failed to parse Slack event")
		c.Status(http.StatusBadRequest)

		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		c.String(http.StatusOK, challenge.Challenge)

	case slackevents.CallbackEvent:
		h.handleCallbackEvent(c, event)

	default:
		c.Status(http.StatusOK)
	}
}

func (h *EventsHandler) handleCallbackEvent(c *gin.Context, event slackevents.EventsAPIEvent) {
	switch event.InnerEvent.Type {
	case "app_uninstalled", "tokens_revoked":
		logger := h.logger.
			WithField("workspace_id", event.TeamID).
			WithField("event", event.InnerEvent.Type)

		if err := h.oauth.HandleUninstall(c.Request.Context(), event.TeamID); err != nil {
			logger.WithError(err).Error("Failed to clean up uninstalled workspace")
		} else {
			logger.Info("Workspace installation removed")
		}
	}

	// Slack retries on non-2xx; cleanup failures are logged, not
	// surfaced.
	c.Status(http.StatusOK)
}

func (h *EventsHandler) verifySignature(header http.Header, body []byte) error {
	verifier, err := slack.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return err
	}

	if _, err := verifier.Write(body); err != nil {
		return err
	}

	return verifier.Ensure()
}
