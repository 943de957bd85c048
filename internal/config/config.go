package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	apperrors "github.com/jrsteele09/go-chatter-roster/internal/errors"
	"github.com/jrsteele09/go-chatter-roster/internal/utils"
	"github.com/jrsteele09/go-chatter-roster/transform"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	SyncConfig
	OverlayConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetConfigPath() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// Settings is the on-disk shape of the configuration file, JSON or YAML.
// Pointer fields distinguish "absent" from an explicit zero value.
type Settings struct {
	ClientID              *string                `json:"clientId" yaml:"clientId"`
	Scopes                []string               `json:"scopes" yaml:"scopes"`
	BroadcasterID         *string                `json:"broadcasterId" yaml:"broadcasterId"`
	ModeratorID           *string                `json:"moderatorId" yaml:"moderatorId"`
	EnoughChatters        *int                   `json:"enoughChatters" yaml:"enoughChatters"`
	DisplayNameTransforms []DisplayNameTransform `json:"displayNameTransforms" yaml:"displayNameTransforms"`
	DrawAuthCode          *bool                  `json:"drawTwitchAuthCode" yaml:"drawTwitchAuthCode"`
	OpenAuthInBrowser     *bool                  `json:"openTwitchAuthInBrowser" yaml:"openTwitchAuthInBrowser"`
	FontSize              *int                   `json:"fontSize" yaml:"fontSize"`
	FontColors            []string               `json:"fontColors" yaml:"fontColors"`
	Issuer                *string                `json:"issuer" yaml:"issuer"`
}

// DisplayNameTransform is one configured substitution rule.
type DisplayNameTransform struct {
	Pattern    string `json:"pattern" yaml:"pattern"`
	Replace    string `json:"replace" yaml:"replace"`
	MaxMatches *int   `json:"maxMatches" yaml:"maxMatches"`
}

const (
	defaultClientID       = "ah1dcykia4chi6pz5f3z80sizxi5ba" // public client, not a secret
	defaultEnoughChatters = 500
	defaultFontSize       = 36
)

var (
	defaultScopes     = []string{"moderator:read:chatters"}
	defaultFontColors = []string{"#006ce0", "#a100e0", "#e00013", "#c6e000", "#00e047"}
)

type mainConfig struct {
	EnvVars
	Cors
	Endpoints

	settings   Settings
	transforms []transform.Rule
}

var _ Config = (*mainConfig)(nil)

// New returns a configuration made only of defaults and environment overrides.
func New() (Config, error) {
	return FromSettings(Settings{})
}

// Load reads the settings file at path. A missing file is not an error, the
// defaults apply.
func Load(path string) (Config, error) {
	var s Settings
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := unmarshalSettings(data, &s); err != nil {
			return nil, errors.Wrapf(err, "config.Load parse %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "config.Load read %s", path)
	}
	return FromSettings(s)
}

// unmarshalSettings decodes JSON documents with encoding/json, which accepts
// tab indentation that YAML rejects, and everything else as YAML.
func unmarshalSettings(data []byte, s *Settings) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, s)
	}
	return yaml.Unmarshal(data, s)
}

// FromSettings applies defaults and environment overrides to s, compiles the
// display name transforms, and validates the result.
func FromSettings(s Settings) (Config, error) {
	applyEnvOverrides(&s)
	applyDefaults(&s)

	if strings.TrimSpace(*s.ClientID) == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidConfig, "clientId is required")
	}
	if *s.EnoughChatters <= 0 {
		return nil, errors.Wrapf(apperrors.ErrInvalidConfig, "enoughChatters must be positive, got %d", *s.EnoughChatters)
	}

	rules := make([]transform.Rule, 0, len(s.DisplayNameTransforms))
	for i, t := range s.DisplayNameTransforms {
		rule, err := transform.Compile(t.Pattern, t.Replace, utils.ValueOr(t.MaxMatches, transform.ReplaceAll))
		if err != nil {
			return nil, errors.Wrapf(apperrors.ErrInvalidTransform, "displayNameTransforms[%d]: %v", i, err)
		}
		rules = append(rules, rule)
	}

	return &mainConfig{settings: s, transforms: rules}, nil
}

func applyDefaults(s *Settings) {
	if s.ClientID == nil {
		s.ClientID = utils.Ptr(defaultClientID)
	}
	if len(s.Scopes) == 0 {
		s.Scopes = append([]string(nil), defaultScopes...)
	}
	if s.EnoughChatters == nil {
		s.EnoughChatters = utils.Ptr(defaultEnoughChatters)
	}
	if s.DrawAuthCode == nil {
		s.DrawAuthCode = utils.Ptr(false)
	}
	if s.OpenAuthInBrowser == nil {
		s.OpenAuthInBrowser = utils.Ptr(true)
	}
	if s.FontSize == nil {
		s.FontSize = utils.Ptr(defaultFontSize)
	}
	if len(s.FontColors) == 0 {
		s.FontColors = append([]string(nil), defaultFontColors...)
	}
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv(clientIDEnvVar); v != "" {
		s.ClientID = utils.Ptr(v)
	}
	if v := os.Getenv(broadcasterIDEnvVar); v != "" {
		s.BroadcasterID = utils.Ptr(v)
	}
	if v := os.Getenv(moderatorIDEnvVar); v != "" {
		s.ModeratorID = utils.Ptr(v)
	}
	if v, ok := getEnvInt(enoughChattersEnvVar); ok {
		s.EnoughChatters = utils.Ptr(v)
	}
	if v, ok := getEnvBool(openBrowserEnvVar); ok {
		s.OpenAuthInBrowser = utils.Ptr(v)
	}
	if v, ok := getEnvBool(drawAuthCodeEnvVar); ok {
		s.DrawAuthCode = utils.Ptr(v)
	}
	if v := os.Getenv(issuerEnvVar); v != "" {
		s.Issuer = utils.Ptr(v)
	}
}
