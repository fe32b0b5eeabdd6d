package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/slackmgr/integrations/slackapi"
	"github.com/slackmgr/integrations/types"
)

// User-facing validation messages, kept verbatim from the frontend
// contract.
const (
	msgWorkspaceRequired = "ワークスペースは必須です"
	msgChannelRequired   = "Slackチャネルは必須です"
	msgEventsRequired    = "通知イベントは1つ以上選択してください"
)

// Slack error codes that are expected when kicking the bot from a
// channel it never joined (or cannot remove itself from).
const (
	slackErrNotInChannel = "not_in_channel"
	slackErrCantKickSelf = "cant_kick_self"
)

// IntegrationSummary is one row of a List response: the stored record
// plus the display names resolved at listing time.
type IntegrationSummary struct {
	IntegrationID      string   `json:"integrationId"`
	Name               string   `json:"name"`
	SlackChannelName   string   `json:"slackChannelName"`
	SlackWorkspaceName string   `json:"slackWorkspaceName"`
	Description        string   `json:"description"`
	NotificationEvents []string `json:"notificationEvents"`
}

// AddParams are the caller-supplied fields of a new integration.
type AddParams struct {
	SlackWorkspaceID   string   `json:"slackWorkspaceId"`
	SlackChannelID     string   `json:"slackChannelId"`
	NotificationEvents []string `json:"notificationEvents"`
	Description        string   `json:"description"`
}

// EditParams are the mutable fields of an existing integration. Both
// default to their zero value when omitted; notification events are
// not re-validated on edit.
type EditParams struct {
	Description        string   `json:"description"`
	NotificationEvents []string `json:"notificationEvents"`
}

// IntegrationService implements list/add/get/edit/delete/test over
// project integrations.
type IntegrationService struct {
	store    Store
	clients  slackapi.Factory
	resolver *NameResolver
	logger   types.Logger

	// Overridable in tests.
	now   func() time.Time
	newID func() string
}

// NewIntegrationService creates an IntegrationService.
func NewIntegrationService(store Store, clients slackapi.Factory, resolver *NameResolver, logger types.Logger) *IntegrationService {
	return &IntegrationService{
		store:    store,
		clients:  clients,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// List returns all integrations for a project with their workspace and
// channel display names resolved. Names are resolved concurrently, one
// task per integration, and the result preserves the store's order.
// An empty project yields an empty (non-nil) slice.
func (s *IntegrationService) List(ctx context.Context, projectID string) ([]IntegrationSummary, error) {
	integrations, err := s.store.QueryIntegrations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations for project %s: %w", projectID, err)
	}

	s.logger.WithField("project_id", projectID).Infof("Listing %d integrations", len(integrations))

	summaries := make([]IntegrationSummary, len(integrations))

	g, ctx := errgroup.WithContext(ctx)

	for i, integration := range integrations {
		i, integration := i, integration
		g.Go(func() error {
			channelName, workspaceName := s.resolver.Resolve(ctx, integration.SlackWorkspaceID, integration.SlackChannelID)
			summaries[i] = IntegrationSummary{
				IntegrationID:      integration.IntegrationID,
				Name:               integration.Name,
				SlackChannelName:   channelName,
				SlackWorkspaceName: workspaceName,
				Description:        integration.Description,
				NotificationEvents: integration.NotificationEvents,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// Add validates params, resolves display names, synthesizes the
// integration name, and persists a new record with a freshly generated
// integration ID. The full record, ID included, is returned.
func (s *IntegrationService) Add(ctx context.Context, projectID string, params AddParams) (*types.Integration, error) {
	if params.SlackWorkspaceID == "" {
		return nil, validationError(msgWorkspaceRequired)
	}

	if params.SlackChannelID == "" {
		return nil, validationError(msgChannelRequired)
	}

	if len(params.NotificationEvents) == 0 {
		return nil, validationError(msgEventsRequired)
	}

	channelName, workspaceName := s.resolver.Resolve(ctx, params.SlackWorkspaceID, params.SlackChannelID)

	integration := &types.Integration{
		IntegrationID:      s.newID(),
		Name:               fmt.Sprintf("%s - %s 連携", workspaceName, channelName),
		SlackWorkspaceID:   params.SlackWorkspaceID,
		SlackChannelID:     params.SlackChannelID,
		ProjectID:          projectID,
		NotificationEvents: params.NotificationEvents,
		Description:        params.Description,
	}

	if err := s.store.PutIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to persist integration: %w", err)
	}

	s.logger.
		WithField("project_id", projectID).
		WithField("integration_id", integration.IntegrationID).
		Info("Integration created")

	return integration, nil
}

// Get returns the raw stored record, or [ErrNotFound].
func (s *IntegrationService) Get(ctx context.Context, projectID, integrationID string) (*types.Integration, error) {
	integration, err := s.store.GetIntegration(ctx, projectID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration %s: %w", integrationID, err)
	}

	if integration == nil {
		return nil, ErrNotFound
	}

	return integration, nil
}

// Edit overwrites only the description and notification events of an
// existing integration and returns the merged record. Omitted fields
// reset to their zero values; the workspace, channel, project, and
// name bindings are immutable. Returns [ErrNotFound] if the record
// does not exist.
func (s *IntegrationService) Edit(ctx context.Context, projectID, integrationID string, params EditParams) (*types.Integration, error) {
	integration, err := s.store.GetIntegration(ctx, projectID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration %s: %w", integrationID, err)
	}

	if integration == nil {
		return nil, ErrNotFound
	}

	integration.Description = params.Description
	integration.NotificationEvents = params.NotificationEvents
	if integration.NotificationEvents == nil {
		integration.NotificationEvents = []string{}
	}

	if err := s.store.PutIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to persist integration %s: %w", integrationID, err)
	}

	return integration, nil
}

// Delete removes an integration. If the record exists and the owning
// workspace still has a token, the bot is first kicked from the bound
// channel on a best-effort basis; kick failures never block the
// delete. Deleting an absent integration succeeds.
func (s *IntegrationService) Delete(ctx context.Context, projectID, integrationID string) error {
	logger := s.logger.
		WithField("project_id", projectID).
		WithField("integration_id", integrationID)

	integration, err := s.store.GetIntegration(ctx, projectID, integrationID)
	if err != nil {
		return fmt.Errorf("failed to get integration %s: %w", integrationID, err)
	}

	if integration != nil {
		s.kickBotFromChannel(ctx, integration, logger)
	}

	if err := s.store.DeleteIntegration(ctx, projectID, integrationID); err != nil {
		return fmt.Errorf("failed to delete integration %s: %w", integrationID, err)
	}

	logger.Info("Integration deleted")

	return nil
}

// kickBotFromChannel removes the workspace bot user from the
// integration's channel. Every failure is absorbed: the delete that
// follows must proceed regardless.
func (s *IntegrationService) kickBotFromChannel(ctx context.Context, integration *types.Integration, logger types.Logger) {
	credential, err := s.store.GetWorkspaceCredential(ctx, integration.SlackWorkspaceID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load workspace credential before delete")
		return
	}

	if credential == nil || credential.AccessToken == "" {
		return
	}

	client := s.clients(credential.AccessToken)

	err = client.KickUserFromConversationContext(ctx, integration.SlackChannelID, credential.BotUserID)
	if err != nil {
		code := slackapi.ErrorCode(err)
		if code != slackErrNotInChannel && code != slackErrCantKickSelf {
			logger.WithError(err).Warn("Failed to remove bot from channel")
		}
		return
	}

	logger.Info("Bot removed from channel")
}

// Test sends a timestamped test message to the integration's channel.
// Returns [ErrNotFound] if the integration does not exist,
// [ErrNoAccessToken] if the workspace has no token, and the Slack API
// error code wrapped in the returned error when delivery fails.
func (s *IntegrationService) Test(ctx context.Context, projectID, integrationID string) error {
	integration, err := s.store.GetIntegration(ctx, projectID, integrationID)
	if err != nil {
		return fmt.Errorf("failed to get integration %s: %w", integrationID, err)
	}

	if integration == nil {
		return ErrNotFound
	}

	credential, err := s.store.GetWorkspaceCredential(ctx, integration.SlackWorkspaceID)
	if err != nil {
		return fmt.Errorf("failed to get workspace credential: %w", err)
	}

	if credential == nil || credential.AccessToken == "" {
		return ErrNoAccessToken
	}

	client := s.clients(credential.AccessToken)
	text := "テストメッセージ送信: " + s.now().Format("2006/1/2 15:04:05")

	if _, _, err := client.PostMessageContext(ctx, integration.SlackChannelID, slack.MsgOptionText(text, false)); err != nil {
		s.logger.
			WithField("integration_id", integrationID).
			WithError(err).
			Error("Failed to send test message")

		return fmt.Errorf("%s", slackapi.ErrorCode(err))
	}

	s.logger.WithField("integration_id", integrationID).Info("Test message sent")

	return nil
}
