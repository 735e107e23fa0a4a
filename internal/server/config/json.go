package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mindvault/internal/flagx"
	"github.com/dmitrijs2005/mindvault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from zero values so that a partial file only
// overrides what it names. Durations accept "15m" style strings.
type JsonConfig struct {
	EndpointAddrHTTP                  *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                  *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                       *string         `json:"database_dsn"`
	SecretKey                         *string         `json:"secret_key"`
	AccessTokenValidityDuration       *timex.Duration `json:"access_token_validity_duration"`
	VerificationTokenValidityDuration *timex.Duration `json:"verification_token_validity_duration"`
	AccessTokenScopes                 []string        `json:"access_token_scopes"`
	VerificationBaseURL               *string         `json:"verification_base_url"`
	VerifiedRedirectURL               *string         `json:"verified_redirect_url"`
	ResendVerificationOnLogin         *bool           `json:"resend_verification_on_login"`
	BcryptCost                        *int            `json:"bcrypt_cost"`
	RedisAddr                         *string         `json:"redis_addr"`
	SMTPAddr                          *string         `json:"smtp_addr"`
	SMTPUser                          *string         `json:"smtp_user"`
	SMTPPassword                      *string         `json:"smtp_password"`
	SMTPFrom                          *string         `json:"smtp_from"`
	NotifyWorkers                     *int            `json:"notify_workers"`
	NotifyMaxAttempts                 *int            `json:"notify_max_attempts"`
	LogLevel                          *string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c/-config flags or $MINDVAULT_CONFIG; when
// neither is set nothing is loaded. An unreadable file or invalid JSON
// panics, matching flag parsing behaviour.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.VerificationTokenValidityDuration != nil {
		config.VerificationTokenValidityDuration = c.VerificationTokenValidityDuration.Duration
	}
	if c.AccessTokenScopes != nil {
		config.AccessTokenScopes = c.AccessTokenScopes
	}
	setString(&config.VerificationBaseURL, c.VerificationBaseURL)
	setString(&config.VerifiedRedirectURL, c.VerifiedRedirectURL)
	if c.ResendVerificationOnLogin != nil {
		config.ResendVerificationOnLogin = *c.ResendVerificationOnLogin
	}
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SMTPAddr, c.SMTPAddr)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setInt(&config.NotifyWorkers, c.NotifyWorkers)
	setInt(&config.NotifyMaxAttempts, c.NotifyMaxAttempts)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
