package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wwqgtxx/obfstunnel/obfs"
	"github.com/wwqgtxx/obfstunnel/psk"
)

var ErrNoSecret = errors.New("config: one of password or secret is required")

// SecretConfig holds the pre-shared secret, either as a password or as 64
// hex digits.
type SecretConfig struct {
	Password string `yaml:"password"`
	Secret   string `yaml:"secret"`
}

func (c SecretConfig) SharedSecret() ([obfs.SecretSize]byte, error) {
	switch {
	case len(c.Secret) > 0 && len(c.Password) > 0:
		return [obfs.SecretSize]byte{}, errors.New("config: password and secret are mutually exclusive")
	case len(c.Secret) > 0:
		return psk.FromHex(c.Secret)
	case len(c.Password) > 0:
		return psk.FromPassword(c.Password), nil
	}
	return [obfs.SecretSize]byte{}, ErrNoSecret
}

type ClientConfig struct {
	SecretConfig  `yaml:",inline"`
	BindAddress   string `yaml:"bind-address"`
	ServerAddress string `yaml:"server-address"`
	Proxy         string `yaml:"proxy"`
}

type ServerConfig struct {
	SecretConfig  `yaml:",inline"`
	BindAddress   string `yaml:"bind-address"`
	TargetAddress string `yaml:"target-address"`
}

type Config struct {
	LogLevel        string         `yaml:"log-level"`
	SessionLifetime int            `yaml:"session-lifetime"` // seconds, 0 disables
	ServerConfigs   []ServerConfig `yaml:"server"`
	ClientConfigs   []ClientConfig `yaml:"client"`
	DisableServer   bool           `yaml:"disable-server"`
	DisableClient   bool           `yaml:"disable-client"`
}

func (c *Config) Lifetime() time.Duration {
	return time.Duration(c.SessionLifetime) * time.Second
}

func ReadConfig(path string) ([]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, errors.Errorf("config: file %s is empty", path)
	}

	return data, err
}

func ParseConfig(buf []byte) (*Config, error) {
	cfg := &Config{
		LogLevel:        "info",
		SessionLifetime: int(obfs.DefaultSessionLifetime / time.Second),
		ServerConfigs:   []ServerConfig{},
		ClientConfigs:   []ClientConfig{},
		DisableServer:   false,
		DisableClient:   false,
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse yaml")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SessionLifetime < 0 {
		return errors.Errorf("config: session-lifetime must not be negative, got %d", c.SessionLifetime)
	}
	for i, sc := range c.ServerConfigs {
		if len(sc.BindAddress) == 0 || len(sc.TargetAddress) == 0 {
			return errors.Errorf("config: server[%d] needs bind-address and target-address", i)
		}
		if _, err := sc.SharedSecret(); err != nil {
			return errors.Wrapf(err, "config: server[%d]", i)
		}
	}
	for i, cc := range c.ClientConfigs {
		if len(cc.BindAddress) == 0 || len(cc.ServerAddress) == 0 {
			return errors.Errorf("config: client[%d] needs bind-address and server-address", i)
		}
		if _, err := cc.SharedSecret(); err != nil {
			return errors.Wrapf(err, "config: client[%d]", i)
		}
	}
	return nil
}
