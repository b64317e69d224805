package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	WSAddr      string `env:"WS_ADDR" envDefault:":8080"`

	NetworkID       string `env:"NETWORK_ID"`
	ChainBaseURL    string `env:"CHAIN_BASE_URL"`
	ChainPackageID  string `env:"CHAIN_PACKAGE_ID"`
	ChainRegistryID string `env:"CHAIN_REGISTRY_ID"`
	ChainSigningKey string `env:"CHAIN_SIGNING_KEY"`

	ChainCallTimeoutS int `env:"CHAIN_CALL_TIMEOUT_SECONDS" envDefault:"30"`
	BatchScheduleHour int `env:"BATCH_SCHEDULE_HOUR" envDefault:"2"`

	SessionIdleTimeoutS  int `env:"SESSION_IDLE_TIMEOUT_SECONDS" envDefault:"90"`
	SessionPingIntervalS int `env:"SESSION_PING_INTERVAL_SECONDS" envDefault:"30"`
	SessionSendBuffer    int `env:"SESSION_SEND_BUFFER" envDefault:"16"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`
}

// ChainConfigured reports whether enough chain-side configuration is
// present to enable chain mirroring. Absence of any of these disables
// chain mirroring globally and the server runs local-only.
func (c ServerConfig) ChainConfigured() bool {
	return c.NetworkID != "" && c.ChainBaseURL != "" && c.ChainPackageID != "" && c.ChainRegistryID != "" && c.ChainSigningKey != ""
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
