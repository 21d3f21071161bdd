package util

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const Name = "scronth"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host                string
		HttpPort            int    `yaml:"httpPort"`
		DataDir             string `yaml:"dataDir"`
		RemoteApi           string `yaml:"remoteApi"`
		ProbeTimeoutSeconds int    `yaml:"probeTimeoutSeconds"`
		LogLevel            string `yaml:"logLevel"`
		LogFormat           string `yaml:"logFormat"`
		DocumentStore       struct {
			Driver string
			Dsn    string
		} `yaml:"documentStore"`
		Owner struct {
			Username string
			Password string
		}
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// local dir first, then ~/.config/scronth
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Info().Str("path", configPath).Msg("Config file not found, using embedded defaults")
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(configDir, ConfigFileName)
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Warn().Err(writeErr).Str("path", userConfigPath).Msg("Could not write default config")
			} else {
				log.Info().Str("path", userConfigPath).Msg("Created default config file")
			}
		}
	}

	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("SCRONTH_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("SCRONTH_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Err(err).Str("value", v).Msg("Ignoring invalid SCRONTH_HTTPPORT")
		} else {
			c.Conf.HttpPort = port
		}
	}
	if v := os.Getenv("SCRONTH_DATA_DIR"); v != "" {
		c.Conf.DataDir = v
	}
	if v, ok := os.LookupEnv("SCRONTH_REMOTE_API"); ok {
		c.Conf.RemoteApi = v
	}
	if v := os.Getenv("SCRONTH_DOCSTORE_DRIVER"); v != "" {
		c.Conf.DocumentStore.Driver = v
	}
	if v := os.Getenv("SCRONTH_DOCSTORE_DSN"); v != "" {
		c.Conf.DocumentStore.Dsn = v
	}
	if v := os.Getenv("SCRONTH_LOG_LEVEL"); v != "" {
		c.Conf.LogLevel = v
	}
	if v := os.Getenv("SCRONTH_LOG_FORMAT"); v != "" {
		c.Conf.LogFormat = v
	}

	if c.Conf.DataDir == "" {
		c.Conf.DataDir = "data"
	}
	if c.Conf.ProbeTimeoutSeconds <= 0 {
		c.Conf.ProbeTimeoutSeconds = 3
	}

	return c, nil
}

var placeholderMarkers = []string{"replace", "dummy", "changeme"}

// IsPlaceholder reports whether a credential was left at a template value.
func IsPlaceholder(credential string) bool {
	credential = strings.ToLower(strings.TrimSpace(credential))
	if credential == "" {
		return true
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(credential, m) {
			return true
		}
	}
	return false
}
