package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	envEnvVar        = "ENV"
	logLevelEnvVar   = "LOG_LEVEL"
	configPathEnvVar = "CONFIG_PATH"

	clientIDEnvVar       = "TWITCH_CLIENT_ID"
	broadcasterIDEnvVar  = "TWITCH_BROADCASTER_ID"
	moderatorIDEnvVar    = "TWITCH_MODERATOR_ID"
	enoughChattersEnvVar = "ENOUGH_CHATTERS"
	openBrowserEnvVar    = "OPEN_AUTH_IN_BROWSER"
	drawAuthCodeEnvVar   = "DRAW_AUTH_CODE"
	issuerEnvVar         = "OIDC_ISSUER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Chatter Roster")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envEnvVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, "info")
}

// GetConfigPath returns the settings file location (JSON or YAML).
func (EnvVars) GetConfigPath() string {
	return GetEnv(configPathEnvVar, "ogof.json")
}

// LoadDotEnv loads a .env file into the process environment. ENV_FILE_PATH
// overrides the default location; a missing file only logs at debug level.
func LoadDotEnv(defaultPath string) {
	envFile := GetEnv("ENV_FILE_PATH", defaultPath)
	if err := godotenv.Load(envFile); err != nil {
		log.Debug().Err(err).Str("path", envFile).Msg(".env not loaded, using process environment")
	}
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(envVar string) (int, bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("ignoring non-integer environment value")
		return 0, false
	}
	return v, true
}

func getEnvBool(envVar string) (bool, bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("ignoring non-boolean environment value")
		return false, false
	}
	return v, true
}
