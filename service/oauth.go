package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/slackmgr/integrations/slackapi"
	"github.com/slackmgr/integrations/types"
)

const slackAuthorizeEndpoint = "https://slack.com/oauth/v2/authorize"

// OAuthConfig carries the Slack app credentials used for the OAuth v2
// authorization flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// WorkspaceEntry is one authorized workspace as presented to the
// frontend workspace picker.
type WorkspaceEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelEntry is one Slack channel as presented to the frontend
// channel picker.
type ChannelEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OAuthService implements the Slack workspace authorization flow and
// the workspace and channel listings backed by stored credentials.
type OAuthService struct {
	store     Store
	clients   slackapi.Factory
	exchanger slackapi.OAuthExchanger
	config    OAuthConfig
	logger    types.Logger

	// Overridable in tests.
	now func() time.Time
}

// NewOAuthService creates an OAuthService.
func NewOAuthService(store Store, clients slackapi.Factory, exchanger slackapi.OAuthExchanger, config OAuthConfig, logger types.Logger) *OAuthService {
	return &OAuthService{
		store:     store,
		clients:   clients,
		exchanger: exchanger,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthorizeURL builds the Slack authorization URL the frontend opens
// in a popup. The state parameter is a fresh random token per call.
func (s *OAuthService) AuthorizeURL() (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	query := url.Values{}
	query.Set("client_id", s.config.ClientID)
	query.Set("scope", strings.Join(s.config.Scopes, ","))
	query.Set("redirect_uri", s.config.RedirectURI)
	query.Set("state", state)

	return slackAuthorizeEndpoint + "?" + query.Encode(), nil
}

// HandleCallback exchanges the temporary authorization code for a bot
// token and stores the workspace credential plus the raw installation
// payload. The credential is keyed by team ID, so re-authorizing a
// workspace overwrites the previous token.
func (s *OAuthService) HandleCallback(ctx context.Context, code string) error {
	resp, err := s.exchanger(ctx, s.config.ClientID, s.config.ClientSecret, code, s.config.RedirectURI)
	if err != nil {
		return fmt.Errorf("Slack OAuth失敗: %s", slackapi.ErrorCode(err))
	}

	if resp.Team.ID == "" {
		return fmt.Errorf("oauth response has no team ID")
	}

	credential := &types.WorkspaceCredential{
		AccessToken: resp.AccessToken,
		Team: types.Team{
			ID:   resp.Team.ID,
			Name: resp.Team.Name,
		},
		AuthedUserID: resp.AuthedUser.ID,
		BotUserID:    resp.BotUserID,
		Scope:        resp.Scope,
		AppID:        resp.AppID,
		TokenType:    resp.TokenType,
		UpdatedAt:    s.now().UTC(),
	}

	if err := s.store.PutWorkspaceCredential(ctx, credential); err != nil {
		return fmt.Errorf("failed to store workspace credential: %w", err)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal installation payload: %w", err)
	}

	if err := s.store.SaveInstallation(ctx, &types.Installation{
		WorkspaceID: resp.Team.ID,
		Payload:     payload,
	}); err != nil {
		return fmt.Errorf("failed to store installation: %w", err)
	}

	s.logger.
		WithField("workspace_id", resp.Team.ID).
		WithField("workspace_name", resp.Team.Name).
		Info("Workspace authorized")

	return nil
}

// ListWorkspaces returns every authorized workspace. A workspace whose
// stored team name is empty is listed under its ID.
func (s *OAuthService) ListWorkspaces(ctx context.Context) ([]WorkspaceEntry, error) {
	credentials, err := s.store.ListWorkspaceCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace credentials: %w", err)
	}

	workspaces := make([]WorkspaceEntry, 0, len(credentials))
	for _, credential := range credentials {
		name := credential.Team.Name
		if name == "" {
			name = credential.Team.ID
		}

		workspaces = append(workspaces, WorkspaceEntry{
			ID:   credential.Team.ID,
			Name: name,
		})
	}

	return workspaces, nil
}

// ListChannels returns the public and private channels visible to the
// workspace's bot token. Returns a validation error when workspaceID
// is empty and [ErrNoAccessToken] when the workspace has no stored
// token.
func (s *OAuthService) ListChannels(ctx context.Context, workspaceID string) ([]ChannelEntry, error) {
	if workspaceID == "" {
		return nil, validationError("workspaceId is required")
	}

	credential, err := s.store.GetWorkspaceCredential(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace credential: %w", err)
	}

	if credential == nil || credential.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	client := s.clients(credential.AccessToken)

	var channels []ChannelEntry

	params := &slack.GetConversationsParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 1000,
	}

	for {
		page, cursor, err := client.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%s", slackapi.ErrorCode(err))
		}

		for _, channel := range page {
			channels = append(channels, ChannelEntry{
				ID:   channel.ID,
				Name: channel.Name,
			})
		}

		if cursor == "" {
			break
		}

		params.Cursor = cursor
	}

	if channels == nil {
		channels = []ChannelEntry{}
	}

	return channels, nil
}

// HandleUninstall removes the installation payload and the workspace
// credential after the app is uninstalled or its tokens are revoked.
// Integrations bound to the workspace are kept; they degrade to
// showing raw IDs until the workspace is re-authorized.
func (s *OAuthService) HandleUninstall(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		return validationError("workspaceId is required")
	}

	if err := s.store.DeleteInstallation(ctx, workspaceID); err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}

	if err := s.store.DeleteWorkspaceCredential(ctx, workspaceID); err != nil {
		return fmt.Errorf("failed to delete workspace credential: %w", err)
	}

	s.logger.WithField("workspace_id", workspaceID).Info("Workspace uninstalled")

	return nil
}

// generateState returns a random hex token for the OAuth state
// parameter.
func generateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
