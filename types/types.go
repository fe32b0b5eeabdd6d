// Package types defines the record shapes shared by the integration
// manager's storage, service, and HTTP layers, along with the Logger
// interface consumed throughout the codebase.
package types

import (
	"encoding/json"
	"time"
)

// Team identifies a Slack workspace as returned by the OAuth exchange.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkspaceCredential holds the bot access token and metadata for one
// authorized Slack workspace. It is written (full overwrite, last write
// wins) on every successful OAuth exchange for that workspace.
type WorkspaceCredential struct {
	AccessToken  string    `json:"access_token"`
	Team         Team      `json:"team"`
	AuthedUserID string    `json:"authed_user_id,omitempty"`
	BotUserID    string    `json:"bot_user_id"`
	Scope        string    `json:"scope"`
	AppID        string    `json:"app_id"`
	TokenType    string    `json:"token_type"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WorkspaceID returns the Slack team ID the credential belongs to.
func (c *WorkspaceCredential) WorkspaceID() string {
	return c.Team.ID
}

// Integration binds a Slack (workspace, channel) pair to a project,
// together with its notification configuration.
//
// IntegrationID is assigned once at creation and never reassigned.
// SlackWorkspaceID, SlackChannelID, ProjectID, and Name are immutable
// after creation; edits change only Description and NotificationEvents.
// Name is synthesized from the workspace and channel names resolved at
// creation time and is not recomputed, so it can drift from the live
// Slack names.
type Integration struct {
	IntegrationID      string   `json:"integrationId"`
	Name               string   `json:"name"`
	SlackWorkspaceID   string   `json:"slackWorkspaceId"`
	SlackChannelID     string   `json:"slackChannelId"`
	ProjectID          string   `json:"projectId"`
	NotificationEvents []string `json:"notificationEvents"`
	Description        string   `json:"description"`
}

// Installation is the messaging SDK's record of the app's presence in a
// workspace. The payload is opaque to this system; it is stored and
// returned verbatim for the SDK's OAuth install lifecycle.
type Installation struct {
	WorkspaceID string          `json:"workspaceId"`
	Payload     json.RawMessage `json:"payload"`
}
