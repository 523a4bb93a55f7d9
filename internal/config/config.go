// Package config loads the checkout service configuration from environment
// variables with sensible defaults for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

// Config is the full service configuration. All keys can be overridden via
// CHECKOUT_* environment variables (e.g. CHECKOUT_CLIENT_KEY).
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	// ClientKey is the widget client credential; CustomerKey identifies the
	// customer the widget is created for.
	ClientKey   string `mapstructure:"client_key"`
	CustomerKey string `mapstructure:"customer_key"`

	// ProviderBaseURL is the payment provider API host the widget gateway
	// talks to. Empty means the provider default.
	ProviderBaseURL string `mapstructure:"provider_base_url"`

	// ConfirmEndpoint is the backend confirmation endpoint the one
	// server-side confirmation call goes to.
	ConfirmEndpoint string `mapstructure:"confirm_endpoint"`

	// SuccessURL and FailURL are the absolute redirect targets handed to
	// the external payment service.
	SuccessURL string `mapstructure:"success_url"`
	FailURL    string `mapstructure:"fail_url"`

	Currency    string        `mapstructure:"currency"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("client_key", "test_ck_docs_checkout")
	v.SetDefault("customer_key", widget.AnonymousCustomerKey)
	v.SetDefault("provider_base_url", "")
	v.SetDefault("confirm_endpoint", "http://localhost:8080/api/payments/confirm")
	v.SetDefault("success_url", "http://localhost:8080/checkout/success")
	v.SetDefault("fail_url", "http://localhost:8080/checkout/fail")
	v.SetDefault("currency", "KRW")
	v.SetDefault("http_timeout", 10*time.Second)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ClientKey == "" {
		return fmt.Errorf("config: client_key is required")
	}
	if c.SuccessURL == "" || c.FailURL == "" {
		return fmt.Errorf("config: success_url and fail_url are required")
	}
	if c.ConfirmEndpoint == "" {
		return fmt.Errorf("config: confirm_endpoint is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http_timeout must be positive")
	}
	return nil
}
