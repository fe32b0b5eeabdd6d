// Package slackapi wraps the subset of the Slack Web API used by the
// integration manager. Clients are minted per workspace access token
// via a [Factory], so the service layer never handles tokens and HTTP
// plumbing together.
package slackapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API consumed by the service
// layer. *slack.Client satisfies it; tests inject mocks.
type API interface {
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetTeamInfoContext(ctx context.Context) (*slack.TeamInfo, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	KickUserFromConversationContext(ctx context.Context, channelID, user string) error
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// Factory mints an [API] client bound to a workspace access token.
type Factory func(accessToken string) API

// NewFactory returns a [Factory] whose clients share httpClient. Pass
// nil to use http.DefaultClient.
func NewFactory(httpClient *http.Client) Factory {
	return func(accessToken string) API {
		opts := []slack.Option{}
		if httpClient != nil {
			opts = append(opts, slack.OptionHTTPClient(httpClient))
		}

		return slack.New(accessToken, opts...)
	}
}

// OAuthExchanger exchanges an OAuth authorization code for a workspace
// access token. It exists as a named type so tests can substitute the
// Slack endpoint.
type OAuthExchanger func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error)

// NewOAuthExchanger returns an [OAuthExchanger] backed by Slack's
// oauth.v2.access endpoint. Pass nil to use http.DefaultClient.
func NewOAuthExchanger(httpClient *http.Client) OAuthExchanger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error) {
		return slack.GetOAuthV2ResponseContext(ctx, httpClient, clientID, clientSecret, code, redirectURI)
	}
}

// ErrorCode returns the Slack API error code (e.g. "not_in_channel",
// "invalid_code") carried by err, or err's plain message when the
// error did not originate from the Slack API.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return apiErr.Err
	}

	return err.Error()
}
