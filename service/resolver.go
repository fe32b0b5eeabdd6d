package service

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/slackmgr/integrations/slackapi"
	"github.com/slackmgr/integrations/types"
)

// NameResolver resolves a (workspace ID, channel ID) pair to display
// names using the workspace's stored access token. It never fails the
// caller: any missing credential or Slack API error leaves the raw ID
// in place, logged but not raised.
type NameResolver struct {
	store   Store
	clients slackapi.Factory
	logger  types.Logger
}

// NewNameResolver creates a NameResolver backed by the given store and
// Slack client factory.
func NewNameResolver(store Store, clients slackapi.Factory, logger types.Logger) *NameResolver {
	return &NameResolver{
		store:   store,
		clients: clients,
		logger:  logger,
	}
}

// Resolve returns the display names for channelID and workspaceID,
// falling back to the raw IDs independently for each lookup that
// cannot be completed.
func (r *NameResolver) Resolve(ctx context.Context, workspaceID, channelID string) (channelName, workspaceName string) {
	channelName = channelID
	workspaceName = workspaceID

	logger := r.logger.
		WithField("workspace_id", workspaceID).
		WithField("channel_id", channelID)

	credential, err := r.store.GetWorkspaceCredential(ctx, workspaceID)
	if err != nil {
		logger.WithError(err).Error("Failed to load workspace credential for name resolution")
		return channelName, workspaceName
	}

	if credential == nil || credential.AccessToken == "" {
		logger.Warn("No access token found for workspace, returning raw IDs")
		return channelName, workspaceName
	}

	client := r.clients(credential.AccessToken)

	channel, err := client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to resolve channel name")
	} else if channel != nil && channel.Name != "" {
		channelName = channel.Name
	}

	team, err := client.GetTeamInfoContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to resolve workspace name")
	} else if team != nil && team.Name != "" {
		workspaceName = team.Name
	}

	return channelName, workspaceName
}
