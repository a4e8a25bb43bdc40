// Package config defines the configuration value of one hdrscan invocation.
// A Config is built once (defaults, then an optional YAML file, then .env and
// environment variables, then command-line flags) and passed by parameter to
// the scanner and the reporter; nothing here is process-wide state.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/credentials"
	"hdrscan/pkg/fetch"
	"hdrscan/pkg/refspec"
	"hdrscan/pkg/utils"
)

// EnvPrefix prefixes every environment variable hdrscan reads
const EnvPrefix = "HDRSCAN"

// DefaultTarget is scanned when no target is configured anywhere
const DefaultTarget = "https://owasp.org"

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// ErrInvalidConfig marks configuration the user must fix
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every option of a scan run
type Config struct {
	Targets  []string `yaml:"targets"`
	Policies []string `yaml:"policies"`

	RecommendedSource string `yaml:"recommended_source"`
	DisclosureSource  string `yaml:"disclosure_source"`

	Timeout         time.Duration     `yaml:"timeout"`
	MaxRedirects    int               `yaml:"max_redirects"`
	Insecure        bool              `yaml:"insecure"`
	Method          string            `yaml:"method"`
	UserAgent       string            `yaml:"user_agent"`
	Headers         map[string]string `yaml:"headers"`
	IncludeMeta     bool              `yaml:"include_meta"`
	FailOnHTTPError bool              `yaml:"fail_on_http_error"`

	// CredentialsRef selects a credential set from Credentials or the
	// HDRSCAN_<REF>_* environment variables
	CredentialsRef string                       `yaml:"credentials_ref"`
	Credentials    map[string]map[string]string `yaml:"credentials"`

	Output   string `yaml:"output"`
	Verbose  bool   `yaml:"verbose"`
	NoColor  bool   `yaml:"no_color"`
	Strict   bool   `yaml:"strict"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing else is specified
func Default() *Config {
	return &Config{
		Policies:          []string{checks.PolicyConfig, checks.PolicyDisclosure},
		RecommendedSource: refspec.DefaultRecommendedSource,
		DisclosureSource:  refspec.DefaultDisclosureSource,
		Timeout:           utils.DefaultTimeout,
		Method:            "GET",
		UserAgent:         utils.DefaultUserAgent,
		Output:            OutputText,
		LogLevel:          "warn",
	}
}

// LoadFile overlays a YAML configuration file onto c. Fields absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: config file '%s': %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// LoadEnv overlays HDRSCAN_* variables onto c. Variables come from the
// process environment first, then from the .env files (".env" when none are
// given) in order. The files are read, never exported to the process. A
// missing file is skipped; a malformed one is an error.
func (c *Config) LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	dotenv := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: env file '%s': %v", ErrInvalidConfig, file, err)
		}
		for name, value := range values {
			if _, seen := dotenv[name]; !seen {
				dotenv[name] = value
			}
		}
	}

	return c.applyEnv(func(name string) (string, bool) {
		if value, ok := os.LookupEnv(name); ok {
			return value, true
		}
		value, ok := dotenv[name]
		return value, ok
	})
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		value, ok := lookup(EnvPrefix + "_" + name)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	if v, ok := get("TARGET"); ok {
		c.Targets = splitList(v)
	}
	if v, ok := get("RECOMMENDED_SOURCE"); ok {
		c.RecommendedSource = v
	}
	if v, ok := get("DISCLOSURE_SOURCE"); ok {
		c.DisclosureSource = v
	}
	if v, ok := get("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s_TIMEOUT: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		c.Timeout = d
	}
	if v, ok := get("USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok := get("CREDENTIALS_REF"); ok {
		c.CredentialsRef = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	// Shorthand credentials land in an implicit "env" set
	token, hasToken := get("BEARER_TOKEN")
	user, hasUser := get("BASIC_USER")
	if hasToken || hasUser {
		password, _ := get("BASIC_PASSWORD")
		if c.Credentials == nil {
			c.Credentials = make(map[string]map[string]string)
		}
		c.Credentials["env"] = map[string]string{
			credentials.KeyToken:    token,
			credentials.KeyUsername: user,
			credentials.KeyPassword: password,
		}
		if c.CredentialsRef == "" {
			c.CredentialsRef = "env"
		}
	}
	return nil
}

// ParseHeader splits a "Name: value" request header argument
func ParseHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: header '%s' must look like 'Name: value'", ErrInvalidConfig, raw)
	}
	value = strings.TrimSpace(value)
	if !httpguts.ValidHeaderFieldName(name) {
		return "", "", fmt.Errorf("%w: invalid header name '%s'", ErrInvalidConfig, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return "", "", fmt.Errorf("%w: invalid value for header '%s'", ErrInvalidConfig, name)
	}
	return name, value, nil
}

// Validate checks the configuration before any network activity
func (c *Config) Validate() error {
	if len(c.Policies) == 0 {
		return fmt.Errorf("%w: no scan policy selected", ErrInvalidConfig)
	}
	for _, p := range c.Policies {
		if _, err := checks.DefaultRegistry.Get(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	for _, target := range c.Targets {
		if _, err := fetch.NormalizeURL(target); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("%w: unknown output format '%s'", ErrInvalidConfig, c.Output)
	}
	if c.wants(checks.PolicyConfig) && strings.TrimSpace(c.RecommendedSource) == "" {
		return fmt.Errorf("%w: recommended header source is empty", ErrInvalidConfig)
	}
	if c.wants(checks.PolicyDisclosure) && strings.TrimSpace(c.DisclosureSource) == "" {
		return fmt.Errorf("%w: disclosure header source is empty", ErrInvalidConfig)
	}
	return nil
}

// ScanTargets returns the configured targets or DefaultTarget
func (c *Config) ScanTargets() []string {
	if len(c.Targets) == 0 {
		return []string{DefaultTarget}
	}
	return c.Targets
}

// Source returns the specification source of a policy
func (c *Config) Source(policy string) string {
	switch policy {
	case checks.PolicyConfig:
		return c.RecommendedSource
	case checks.PolicyDisclosure:
		return c.DisclosureSource
	}
	return ""
}

func (c *Config) wants(policy string) bool {
	for _, p := range c.Policies {
		if p == policy {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ResolveCredentials returns the credential set selected by CredentialsRef,
// looking first at the configured sets and then at the environment. No
// reference means no credentials.
func (c *Config) ResolveCredentials() (map[string]string, error) {
	if c.CredentialsRef == "" {
		return nil, nil
	}

	provider := credentials.NewProvider()
	if err := provider.RegisterResolver(credentials.NewStaticResolver("config", c.Credentials)); err != nil {
		return nil, err
	}
	if err := provider.RegisterResolver(credentials.NewEnvResolver(EnvPrefix)); err != nil {
		return nil, err
	}

	creds, err := provider.ResolveCredentials(c.CredentialsRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return creds, nil
}
