package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slackmgr/integrations/service"
	"github.com/slackmgr/integrations/types"
)

// RouterOptions carries the handler dependencies for [NewRouter].
type RouterOptions struct {
	Integrations  *service.IntegrationService
	OAuth         *service.OAuthService
	SigningSecret string
	Logger        types.Logger
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(opts RouterOptions) *gin.Engine {
	engine := gin.New()
	engine.Use(CORS(), RequestLogger(opts.Logger), Recovery(opts.Logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	integrations := NewIntegrationHandler(opts.Integrations, opts.Logger)
	projects := engine.Group("/projects/:projectId/integrations")
	{
		projects.POST("", integrations.List)
		projects.POST("/add", integrations.Add)
		projects.POST("/:integrationId", integrations.Get)
		projects.POST("/:integrationId/edit", integrations.Edit)
		projects.POST("/:integrationId/delete", integrations.Delete)
		projects.POST("/:integrationId/test", integrations.Test)
	}

	oauth := NewOAuthHandler(opts.OAuth, opts.Logger)
	slackGroup := engine.Group("/slack")
	{
		slackGroup.GET("/oauth/url", oauth.AuthorizeURL)
		slackGroup.GET("/oauth/callback", oauth.Callback)
		slackGroup.GET("/oauth/workspaces", oauth.Workspaces)
		slackGroup.GET("/oauth/channels", oauth.Channels)

		events := NewEventsHandler(opts.OAuth, opts.SigningSecret, opts.Logger)
		slackGroup.POST("/events", events.Handle)
	}

	return engine
}
