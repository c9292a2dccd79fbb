package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roomrelay/roomrelay/internal/session"
	"github.com/roomrelay/roomrelay/internal/wsrelay"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Relay   RelayConfig   `yaml:"relay"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Demo    DemoConfig    `yaml:"demo"`
}

// AppConfig identifies the application to the backend. Clients with
// different versions never see each other's rooms.
type AppConfig struct {
	ID      string `yaml:"id" env:"ROOMRELAY_APP_ID"`
	Version string `yaml:"version" env:"ROOMRELAY_APP_VERSION"`
}

type RelayConfig struct {
	URL            string        `yaml:"url" env:"ROOMRELAY_URL"`
	ServiceTimeout time.Duration `yaml:"service_timeout" env:"ROOMRELAY_SERVICE_TIMEOUT"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

type SessionConfig struct {
	MasterPolicy string `yaml:"master_policy" env:"ROOMRELAY_MASTER_POLICY"`
}

// ServerConfig is the listen address of the development relay.
type ServerConfig struct {
	Host string `yaml:"host" env:"ROOMRELAY_HOST"`
	Port int    `yaml:"port" env:"ROOMRELAY_PORT"`
	// AllowedApps restricts which application ids may connect. Empty allows
	// all.
	AllowedApps []string `yaml:"allowed_apps" env:"ROOMRELAY_ALLOWED_APPS"`
}

// DemoConfig seeds the demo client.
type DemoConfig struct {
	UserName   string `yaml:"user_name" env:"ROOMRELAY_USER"`
	RoomName   string `yaml:"room_name"`
	MaxPlayers int    `yaml:"max_players"`
}

func defaultConfig() *Config {
	relay := wsrelay.DefaultConfig("ws://127.0.0.1:8090/ws")
	return &Config{
		Relay: RelayConfig{
			URL:            relay.URL,
			ServiceTimeout: relay.ServiceTimeout,
			PingInterval:   relay.PingInterval,
			PongTimeout:    relay.PongTimeout,
			WriteTimeout:   relay.WriteTimeout,
			DialTimeout:    relay.DialTimeout,
		},
		Session: SessionConfig{
			MasterPolicy: session.MasterLowestActive.String(),
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Demo: DemoConfig{
			UserName:   "Player",
			MaxPlayers: 4,
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a client needs before it can connect.
func (c *Config) Validate() error {
	var errs []error
	if c.App.ID == "" {
		errs = append(errs, errors.New("app.id is required"))
	}
	if c.App.Version == "" {
		errs = append(errs, errors.New("app.version is required"))
	}
	if c.Relay.URL == "" {
		errs = append(errs, errors.New("relay.url is required"))
	}
	if c.Relay.ServiceTimeout <= 0 {
		errs = append(errs, errors.New("relay.service_timeout must be positive"))
	}
	if _, err := session.ParseMasterPolicy(c.Session.MasterPolicy); err != nil {
		errs = append(errs, fmt.Errorf("session.master_policy: %w", err))
	}
	if c.Demo.MaxPlayers < 1 || c.Demo.MaxPlayers > session.MaxRoomPlayers {
		errs = append(errs, fmt.Errorf("demo.max_players must be between 1 and %d", session.MaxRoomPlayers))
	}
	return errors.Join(errs...)
}

// MasterPolicy returns the configured master policy, defaulting to the
// lowest active member when the setting is invalid.
func (c *Config) MasterPolicy() session.MasterPolicy {
	p, err := session.ParseMasterPolicy(c.Session.MasterPolicy)
	if err != nil {
		return session.MasterLowestActive
	}
	return p
}

// WSRelay returns the websocket transport settings.
func (c *Config) WSRelay() wsrelay.Config {
	return wsrelay.Config{
		URL:            c.Relay.URL,
		ServiceTimeout: c.Relay.ServiceTimeout,
		PingInterval:   c.Relay.PingInterval,
		PongTimeout:    c.Relay.PongTimeout,
		WriteTimeout:   c.Relay.WriteTimeout,
		DialTimeout:    c.Relay.DialTimeout,
	}
}

// Addr is the development relay's listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
