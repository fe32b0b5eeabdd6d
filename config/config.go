// Package config loads runtime configuration. Values resolve in
// order: environment variable, then the secrets file, then the
// built-in default. A .env file is loaded first when present so local
// development does not need exported variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults match the deployment this service replaces.
const (
	DefaultTableName  = "SlackIntegrations"
	DefaultRegion     = "ap-northeast-1"
	DefaultListenAddr = ":8080"

	defaultSecretsPath = "config/secrets.yml"
)

// DefaultScopes is the bot scope set requested during workspace
// authorization.
var DefaultScopes = []string{
	"chat:write",
	"channels:read",
	"groups:read",
	"im:read",
	"mpim:read",
	"team:read",
	"users:read",
	"chat:write.public",
}

// Config is the assembled runtime configuration.
type Config struct {
	TableName  string
	Region     string
	ListenAddr string

	SlackClientID      string
	SlackClientSecret  string
	SlackRedirectURI   string
	SlackSigningSecret string
	Scopes             []string
}

// Load assembles the configuration. The secrets file path comes from
// SECRETS_FILE, falling back to config/secrets.yml; a missing secrets
// file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	secretsPath := os.Getenv("SECRETS_FILE")
	if secretsPath == "" {
		secretsPath = defaultSecretsPath
	}

	secrets, err := loadSecrets(secretsPath)
	if err != nil {
		return nil, err
	}

	lookup := func(key, fallback string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}

		if value := secrets[key]; value != "" {
			return value
		}

		return fallback
	}

	cfg := &Config{
		TableName:          lookup("DYNAMODB_TABLE", DefaultTableName),
		Region:             lookup("DYNAMODB_REGION", DefaultRegion),
		ListenAddr:         lookup("LISTEN_ADDR", DefaultListenAddr),
		SlackClientID:      lookup("SLACK_CLIENT_ID", ""),
		SlackClientSecret:  lookup("SLACK_CLIENT_SECRET", ""),
		SlackRedirectURI:   lookup("SLACK_REDIRECT_URI", ""),
		SlackSigningSecret: lookup("SLACK_SIGNING_SECRET", ""),
		Scopes:             DefaultScopes,
	}

	if raw := lookup("SLACK_SCOPES", ""); raw != "" {
		cfg.Scopes = splitScopes(raw)
	}

	return cfg, nil
}

// Validate reports the first missing setting that has no usable
// default.
func (c *Config) Validate() error {
	switch {
	case c.SlackClientID == "":
		return fmt.Errorf("SLACK_CLIENT_ID is not set")
	case c.SlackClientSecret == "":
		return fmt.Errorf("SLACK_CLIENT_SECRET is not set")
	case c.SlackRedirectURI == "":
		return fmt.Errorf("SLACK_REDIRECT_URI is not set")
	case c.SlackSigningSecret == "":
		return fmt.Errorf("SLACK_SIGNING_SECRET is not set")
	}

	return nil
}

// loadSecrets reads the flat key/value secrets file. An absent file
// yields an empty map.
func loadSecrets(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("failed to read secrets file %s: %w", path, err)
	}

	secrets := map[string]string{}
	if err := yaml.Unmarshal(raw, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file %s: %w", path, err)
	}

	return secrets, nil
}

func splitScopes(raw string) []string {
	var scopes []string
	for _, scope := range strings.Split(raw, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}

	return scopes
}
