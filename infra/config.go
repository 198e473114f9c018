package infra

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type HttpConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	// WSSendBuffer is the number of updates queued per WebSocket client
	// before it is dropped.
	WSSendBuffer int `envconfig:"WS_SEND_BUFFER" default:"64"`
}

type SSEConfig struct {
	URL           string        `envconfig:"URL"`
	ReconnectBase time.Duration `envconfig:"RECONNECT_BASE" default:"1s"`
	ReconnectMax  time.Duration `envconfig:"RECONNECT_MAX" default:"30s"`
}

type CentrifugoConfig struct {
	// Addr is host:port of the Centrifugo server to consume from.
	Addr          string `envconfig:"ADDR"`
	TokenSecret   string `envconfig:"TOKEN_SECRET"`
	ChannelPrefix string `envconfig:"CHANNEL_PREFIX" default:"live:"`

	// APIAddr enables republishing of rendered regions.
	APIAddr       string `envconfig:"API_ADDR"`
	APIKey        string `envconfig:"API_KEY"`
	PublishPrefix string `envconfig:"PUBLISH_PREFIX" default:"views:"`

	Debug bool `envconfig:"DEBUG"`
}

type ViewConfig struct {
	SwapDelay       time.Duration `envconfig:"SWAP_DELAY" default:"450ms"`
	FundingUnit     string        `envconfig:"FUNDING_UNIT" default:"XMR"`
	ChartSeriesFile string        `envconfig:"CHART_SERIES_FILE"`
	RefreshSpec     string        `envconfig:"REFRESH_SPEC" default:"@every 1m"`
	QueueSize       int           `envconfig:"QUEUE_SIZE" default:"256"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
}

type Config struct {
	HttpConfig       HttpConfig       `envconfig:"HTTP"`
	SSEConfig        SSEConfig        `envconfig:"SSE"`
	CentrifugoConfig CentrifugoConfig `envconfig:"CENTRIFUGO"`
	ViewConfig       ViewConfig       `envconfig:"VIEW"`
	LogConfig        LogConfig        `envconfig:"LOG"`
}

// Validate checks settings envconfig tags can't express.
func (c Config) Validate() error {
	if c.SSEConfig.URL == "" && c.CentrifugoConfig.Addr == "" {
		return errors.New("no inbound source: set SSE_URL or CENTRIFUGO_ADDR")
	}
	if c.CentrifugoConfig.APIAddr != "" && c.CentrifugoConfig.APIKey == "" {
		return errors.New("CENTRIFUGO_API_KEY is required with CENTRIFUGO_API_ADDR")
	}
	if c.ViewConfig.QueueSize <= 0 {
		return errors.Errorf("VIEW_QUEUE_SIZE must be positive, got %d", c.ViewConfig.QueueSize)
	}
	if c.HttpConfig.WSSendBuffer <= 0 {
		return errors.Errorf("HTTP_WS_SEND_BUFFER must be positive, got %d", c.HttpConfig.WSSendBuffer)
	}

	return nil
}

// LoadConfig reads the optional .env file at path, then the environment.
func LoadConfig(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load %s", path)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
