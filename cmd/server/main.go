package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"

	"github.com/slackmgr/integrations/config"
	"github.com/slackmgr/integrations/dynamodb"
	"github.com/slackmgr/integrations/httpapi"
	"github.com/slackmgr/integrations/logger"
	"github.com/slackmgr/integrations/service"
	"github.com/slackmgr/integrations/slackapi"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.New(os.Stderr, "info").WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	log := logger.New(os.Stdout, os.Getenv("LOG_LEVEL"))

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		log.WithError(err).Error("Failed to load AWS configuration")
		os.Exit(1)
	}

	store := dynamodb.New(&awsCfg, cfg.TableName)
	if err := store.Connect(); err != nil {
		log.WithError(err).Error("Failed to create DynamoDB client")
		os.Exit(1)
	}

	if err := store.Init(ctx, false); err != nil {
		log.WithError(err).Error("Failed to validate DynamoDB table")
		os.Exit(1)
	}

	log.
		WithField("table", cfg.TableName).
		WithField("region", cfg.Region).
		Info("Connected to DynamoDB")

	clients := slackapi.NewFactory(nil)
	exchanger := slackapi.NewOAuthExchanger(nil)

	resolver := service.NewNameResolver(store, clients, log)
	integrations := service.NewIntegrationService(store, clients, resolver, log)
	oauth := service.NewOAuthService(store, clients, exchanger, service.OAuthConfig{
		ClientID:     cfg.SlackClientID,
		ClientSecret: cfg.SlackClientSecret,
		RedirectURI:  cfg.SlackRedirectURI,
		Scopes:       cfg.Scopes,
	}, log)

	gin.SetMode(gin.ReleaseMode)

	engine := httpapi.NewRouter(httpapi.RouterOptions{
		Integrations:  integrations,
		OAuth:         oauth,
		SigningSecret: cfg.SlackSigningSecret,
		Logger:        log,
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("HTTP server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown did not complete cleanly")
	}
}
