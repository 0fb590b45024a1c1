// Package config loads the environment-variable configuration recognized by
// the indexer (spec §6.3). It follows the teacher's pkg/config/pkg/utils
// pattern: godotenv for local .env files, viper for env binding, and the
// teacher's pkg/utils env getters for typed defaults, since there is no YAML
// config file in this service — only environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"chainequity/pkg/utils"
)

// Config is the unified runtime configuration for the indexer process.
type Config struct {
	Port                  int
	NodeEnv               string
	UseLocalNetwork       bool
	LocalRPCURL           string
	AlchemyAPIKey         string
	AlchemyNetwork        string
	TokenContractAddress  string
	DatabasePath          string
	CORSOrigin            string
	DeploymentBlock       *uint64
}

// Load reads .env (best effort) then the process environment, the way
// cmd/explorer/main.go loads configuration before constructing its service.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()

	cfg := &Config{
		Port:                 utils.EnvOrDefaultInt("PORT", 4000),
		NodeEnv:              utils.EnvOrDefault("NODE_ENV", "development"),
		UseLocalNetwork:      envOrDefaultBool("USE_LOCAL_NETWORK", false),
		LocalRPCURL:          utils.EnvOrDefault("LOCAL_RPC_URL", ""),
		AlchemyAPIKey:        utils.EnvOrDefault("ALCHEMY_API_KEY", ""),
		AlchemyNetwork:       utils.EnvOrDefault("ALCHEMY_NETWORK", "polygon-amoy"),
		TokenContractAddress: utils.EnvOrDefault("TOKEN_CONTRACT_ADDRESS", ""),
		DatabasePath:         utils.EnvOrDefault("DATABASE_PATH", "./chainequity.db"),
		CORSOrigin:           utils.EnvOrDefault("CORS_ORIGIN", "*"),
	}

	if cfg.TokenContractAddress == "" {
		return nil, utils.Wrap(errMissingTokenContract, "load configuration")
	}

	if deploymentBlock := utils.EnvOrDefaultUint64("DEPLOYMENT_BLOCK", 0); deploymentBlock > 0 {
		cfg.DeploymentBlock = &deploymentBlock
	}

	return cfg, nil
}

var errMissingTokenContract = errors.New("missing required environment variable TOKEN_CONTRACT_ADDRESS")

// RPCURL resolves the endpoint to dial, preferring the local network flag.
func (c *Config) RPCURL() string {
	if c.UseLocalNetwork {
		return c.LocalRPCURL
	}
	return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", c.AlchemyNetwork, c.AlchemyAPIKey)
}

// WSURL resolves the websocket endpoint for subscriptions.
func (c *Config) WSURL() string {
	if c.UseLocalNetwork {
		return c.LocalRPCURL
	}
	return fmt.Sprintf("wss://%s.g.ws.alchemy.com/v2/%s", c.AlchemyNetwork, c.AlchemyAPIKey)
}

func envOrDefaultBool(key string, fallback bool) bool {
	v := viper.GetString(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
