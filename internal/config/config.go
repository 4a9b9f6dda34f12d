// Package config loads the gateway configuration from an optional YAML
// file, command line flags and environment variables. Precedence is
// environment over flags over file over defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway configuration.
type Config struct {
	// HTTP settings
	BindAddr string
	Port     int
	// PublicHost is the externally reachable host[:port] placed in media
	// stream URLs handed to telephony vendors.
	PublicHost string
	// APIKeys authorize callers of the outbound-call endpoint.
	APIKeys []string

	// Agent platform settings
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string

	// Twilio settings
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Session settings
	MaxSessions      int
	MaxCallDuration  time.Duration
	AgentDialTimeout time.Duration
	// GracePeriod keeps ended sessions visible to the monitoring API.
	GracePeriod time.Duration
	// ContextTTL bounds how long an initiated call may wait for its media
	// stream to connect.
	ContextTTL time.Duration

	LogLevel    string
	Environment string
}

// fileConfig mirrors Config for the YAML file; absent keys leave the
// corresponding setting untouched.
type fileConfig struct {
	BindAddr   *string  `yaml:"bind_addr"`
	Port       *int     `yaml:"port"`
	PublicHost *string  `yaml:"public_host"`
	APIKeys    []string `yaml:"api_keys"`

	ElevenLabsAPIKey  *string `yaml:"elevenlabs_api_key"`
	ElevenLabsBaseURL *string `yaml:"elevenlabs_base_url"`

	TwilioAccountSID *string `yaml:"twilio_account_sid"`
	TwilioAuthToken  *string `yaml:"twilio_auth_token"`
	TwilioFromNumber *string `yaml:"twilio_from_number"`

	MaxSessions      *int    `yaml:"max_sessions"`
	MaxCallDuration  *string `yaml:"max_call_duration"`
	AgentDialTimeout *string `yaml:"agent_dial_timeout"`
	GracePeriod      *string `yaml:"grace_period"`
	ContextTTL       *string `yaml:"context_ttl"`

	LogLevel    *string `yaml:"log_level"`
	Environment *string `yaml:"environment"`
}

// Load loads configuration from flags, an optional YAML file and
// environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "HTTP bind address")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listening port")
	flag.StringVar(&cfg.PublicHost, "public-host", cfg.PublicHost, "Externally reachable host for media stream URLs")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Maximum concurrent call sessions")
	flag.DurationVar(&cfg.MaxCallDuration, "max-call-duration", cfg.MaxCallDuration, "Maximum duration of one call")
	flag.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Environment, "environment", cfg.Environment, "Deployment environment name")
	flag.Parse()

	// Remember which flags were given so the file cannot override them.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		if err := applyFile(cfg, configPath, set); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if cfg.PublicHost == "" {
		cfg.PublicHost = fmt.Sprintf("localhost:%d", cfg.Port)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		BindAddr:          "0.0.0.0",
		Port:              8080,
		ElevenLabsBaseURL: "https://api.elevenlabs.io/v1",
		MaxSessions:       50,
		MaxCallDuration:   time.Hour,
		AgentDialTimeout:  10 * time.Second,
		GracePeriod:       5 * time.Minute,
		ContextTTL:        2 * time.Minute,
		LogLevel:          "info",
		Environment:       "development",
	}
}

func applyFile(cfg *Config, path string, setFlags map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString := func(flagName string, dst *string, src *string) {
		if src != nil && !setFlags[flagName] {
			*dst = *src
		}
	}
	setInt := func(flagName string, dst *int, src *int) {
		if src != nil && !setFlags[flagName] {
			*dst = *src
		}
	}
	setDuration := func(flagName string, dst *time.Duration, src *string) error {
		if src == nil || setFlags[flagName] {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		*dst = d
		return nil
	}

	setString("bind", &cfg.BindAddr, fc.BindAddr)
	setInt("port", &cfg.Port, fc.Port)
	setString("public-host", &cfg.PublicHost, fc.PublicHost)
	if fc.APIKeys != nil {
		cfg.APIKeys = fc.APIKeys
	}
	setString("", &cfg.ElevenLabsAPIKey, fc.ElevenLabsAPIKey)
	setString("", &cfg.ElevenLabsBaseURL, fc.ElevenLabsBaseURL)
	setString("", &cfg.TwilioAccountSID, fc.TwilioAccountSID)
	setString("", &cfg.TwilioAuthToken, fc.TwilioAuthToken)
	setString("", &cfg.TwilioFromNumber, fc.TwilioFromNumber)
	setInt("max-sessions", &cfg.MaxSessions, fc.MaxSessions)
	if err := setDuration("max-call-duration", &cfg.MaxCallDuration, fc.MaxCallDuration); err != nil {
		return err
	}
	if err := setDuration("", &cfg.AgentDialTimeout, fc.AgentDialTimeout); err != nil {
		return err
	}
	if err := setDuration("", &cfg.GracePeriod, fc.GracePeriod); err != nil {
		return err
	}
	if err := setDuration("", &cfg.ContextTTL, fc.ContextTTL); err != nil {
		return err
	}
	setString("loglevel", &cfg.LogLevel, fc.LogLevel)
	setString("environment", &cfg.Environment, fc.Environment)
	return nil
}

func applyEnv(cfg *Config) {
	if bind := os.Getenv("BIND"); bind != "" {
		cfg.BindAddr = bind
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if host := os.Getenv("PUBLIC_HOST"); host != "" {
		cfg.PublicHost = host
	}
	if keys := os.Getenv("API_KEYS"); keys != "" {
		cfg.APIKeys = splitList(keys)
	}
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		cfg.ElevenLabsAPIKey = key
	}
	if url := os.Getenv("ELEVENLABS_BASE_URL"); url != "" {
		cfg.ElevenLabsBaseURL = url
	}
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		cfg.TwilioAccountSID = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		cfg.TwilioAuthToken = token
	}
	if from := os.Getenv("TWILIO_FROM_NUMBER"); from != "" {
		cfg.TwilioFromNumber = from
	}
	if max := os.Getenv("MAX_SESSIONS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			cfg.MaxSessions = n
		}
	}
	if d := os.Getenv("MAX_CALL_DURATION"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.MaxCallDuration = v
		}
	}
	if d := os.Getenv("AGENT_DIAL_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.AgentDialTimeout = v
		}
	}
	if d := os.Getenv("GRACE_PERIOD"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.GracePeriod = v
		}
	}
	if d := os.Getenv("CONTEXT_TTL"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			cfg.ContextTTL = v
		}
	}
	if level := os.Getenv("LOGLEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ListenAddr returns the bind address in host:port form.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}
