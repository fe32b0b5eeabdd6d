package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slackmgr/integrations/service"
	"github.com/slackmgr/integrations/types"
)

// IntegrationHandler serves the project-scoped integration endpoints.
type IntegrationHandler struct {
	integrations *service.IntegrationService
	logger       types.Logger
}

// NewIntegrationHandler creates an IntegrationHandler.
func NewIntegrationHandler(integrations *service.IntegrationService, logger types.Logger) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, logger: logger}
}

// List handles POST /projects/:projectId/integrations.
func (h *IntegrationHandler) List(c *gin.Context) {
	summaries, err := h.integrations.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, Data: summaries})
}

// Add handles POST /projects/:projectId/integrations/add. Rejected
// parameters produce HTTP 400; every other outcome is a 200.
func (h *IntegrationHandler) Add(c *gin.Context) {
	var params service.AddParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.logger.WithError(err).Warn("Invalid add request body")
		c.JSON(http.StatusBadRequest, service.Result{Done: false, Message: "invalid request body"})
		return
	}

	integration, err := h.integrations.Add(c.Request.Context(), c.Param("projectId"), params)
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, service.Result{Done: false, Message: validationErr.Message})
			return
		}

		fail(c, h.logger, err)

		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, Data: integration})
}

// Get handles POST /projects/:projectId/integrations/:integrationId.
func (h *IntegrationHandler) Get(c *gin.Context) {
	integration, err := h.integrations.Get(c.Request.Context(), c.Param("projectId"), c.Param("integrationId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, Data: integration})
}

// Edit handles POST /projects/:projectId/integrations/:integrationId/edit.
func (h *IntegrationHandler) Edit(c *gin.Context) {
	var params service.EditParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.logger.WithError(err).Warn("Invalid edit request body")
		c.JSON(http.StatusOK, service.Result{Done: false, Message: "invalid request body"})
		return
	}

	integration, err := h.integrations.Edit(c.Request.Context(), c.Param("projectId"), c.Param("integrationId"), params)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, Data: integration})
}

// Delete handles POST /projects/:projectId/integrations/:integrationId/delete.
func (h *IntegrationHandler) Delete(c *gin.Context) {
	if err := h.integrations.Delete(c.Request.Context(), c.Param("projectId"), c.Param("integrationId")); err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true})
}

// Test handles POST /projects/:projectId/integrations/:integrationId/test.
func (h *IntegrationHandler) Test(c *gin.Context) {
	if err := h.integrations.Test(c.Request.Context(), c.Param("projectId"), c.Param("integrationId")); err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true})
}

// OAuthHandler serves the Slack OAuth endpoints.
type OAuthHandler struct {
	oauth  *service.OAuthService
	logger types.Logger
}

// NewOAuthHandler creates an OAuthHandler.
func NewOAuthHandler(oauth *service.OAuthService, logger types.Logger) *OAuthHandler {
	return &OAuthHandler{oauth: oauth, logger: logger}
}

// AuthorizeURL handles GET /slack/oauth/url.
func (h *OAuthHandler) AuthorizeURL(c *gin.Context) {
	authorizeURL, err := h.oauth.AuthorizeURL()
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, URL: authorizeURL})
}

// Callback handles GET /slack/oauth/callback.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if err := h.oauth.HandleCallback(c.Request.Context(), c.Query("code")); err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{
		Done:    true,
		Message: "Slackワークスペース連携が完了しました。画面を閉じてください。",
	})
}

// Workspaces handles GET /slack/oauth/workspaces.
func (h *OAuthHandler) Workspaces(c *gin.Context) {
	workspaces, err := h.oauth.ListWorkspaces(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, Data: workspaces})
}

// Channels handles GET /slack/oauth/channels.
func (h *OAuthHandler) Channels(c *gin.Context) {
	channels, err := h.oauth.ListChannels(c.Request.Context(), c.Query("workspaceId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, service.Result{Done: true, Data: channels})
}

// fail writes the standard failure envelope. Expected conditions keep
// HTTP 200; the client reads the done flag, not the status code.
func fail(c *gin.Context, logger types.Logger, err error) {
	if !errors.Is(err, service.ErrNotFound) && !errors.Is(err, service.ErrNoAccessToken) {
		logger.
			WithField("path", c.Request.URL.Path).
			WithError(err).
			Error("Request failed")
	}

	c.JSON(http.StatusOK, service.Result{Done: false, Message: err.Error()})
}
