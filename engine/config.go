package engine

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/teamforge/auction-engine/engine/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log     LogConfig         `toml:"log"`
	HTTP    HTTPConfig        `toml:"http"`
	DB      database.DBConfig `toml:"db"`
	Auction AuctionConfig     `toml:"auction"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	AddSource bool       `toml:"add_source"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type AuctionConfig struct {
	// BlindWindowSeconds is how long before end_time views stop disclosing
	// price and bidder.
	BlindWindowSeconds int `toml:"blind_window_seconds"`
	// SweepIntervalSeconds is how often the lifecycle scheduler re-evaluates
	// auction statuses.
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8090"
	}
	if c.Auction.BlindWindowSeconds <= 0 {
		c.Auction.BlindWindowSeconds = 30
	}
	if c.Auction.SweepIntervalSeconds <= 0 {
		c.Auction.SweepIntervalSeconds = 5
	}
}

func (c AuctionConfig) BlindWindow() time.Duration {
	return time.Duration(c.BlindWindowSeconds) * time.Second
}

func (c AuctionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
