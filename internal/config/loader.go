package config

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// FOO_SSM_PARAM=/path makes the loader resolve /path into FOO.
	ssmParamSuffix = "_SSM_PARAM"

	localEnv = "local"

	secretResolveTimeout = 30 * time.Second
)

// Public and sovereign cloud ingestion endpoints, e.g.
// https://<workspace>.ods.opinsights.azure.com or .azure.us.
var logAnalyticsURIPattern = regexp.MustCompile(`^https://([\w\-]+)\.ods\.opinsights\.azure\.([a-zA-Z\.]+)$`)

// environment is the mutable process environment seen by secret resolution.
type environment interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Entries() []string
}

type osEnvironment struct{}

func (osEnvironment) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnvironment) Set(key, value string) error      { return os.Setenv(key, value) }
func (osEnvironment) Entries() []string                { return os.Environ() }

// LoadConfig builds the immutable Config for this process. Outside APP_ENV=local
// every *_SSM_PARAM variable is resolved through provider first; a variable
// already present in the environment or .env file wins over SSM.
//
// The returned error is always a *ConfigError.
func LoadConfig(ctx context.Context, provider SecretProvider) (*Config, error) {
	// All watermark arithmetic is UTC.
	time.Local = time.UTC

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return load(ctx, provider, osEnvironment{})
}

func load(ctx context.Context, provider SecretProvider, env environment) (*Config, error) {
	if appEnv, _ := env.Lookup("APP_ENV"); appEnv != localEnv {
		if err := injectSecrets(ctx, provider, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, configErr(ErrParsing, err, "processing environment")
	}
	cfg.Build = currentBuild()
	cfg.Scheduler.ExcludedActivities = cleanList(cfg.Scheduler.ExcludedActivities)

	if err := newValidator().Struct(cfg); err != nil {
		return nil, configErr(ErrValidation, err, "invalid configuration")
	}

	uri, err := resolveLogAnalyticsURI(cfg.Destination)
	if err != nil {
		return nil, err
	}
	cfg.Destination.LogAnalyticsURI = uri

	return &cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		cfg := sl.Current().Interface().(Config)
		if cfg.State.Backend == StateBackendPostgres && !cfg.Database.URL.IsSet() {
			sl.ReportError(cfg.Database.URL, "Database.URL", "URL", "required_for_postgres", "")
		}
	}, Config{})
	return v
}

// cleanList trims the items of a comma separated env list and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveLogAnalyticsURI falls back to the public cloud endpoint for the
// workspace when LOG_ANALYTICS_URI is blank.
func resolveLogAnalyticsURI(dest DestinationConfig) (string, error) {
	uri := strings.TrimSpace(dest.LogAnalyticsURI)
	if uri == "" {
		uri = "https://" + dest.WorkspaceID + ".ods.opinsights.azure.com"
	}
	if !logAnalyticsURIPattern.MatchString(uri) {
		return "", configErr(ErrInvalidDestination, nil, "invalid Log Analytics URI %q", uri)
	}
	return uri, nil
}

type secretBinding struct {
	target string // DATABASE_URL
	path   string // /prod/gworkspace/database/url
}

// secretBindings lists the *_SSM_PARAM pointers whose target variable is
// still unset, ordered by target.
func secretBindings(env environment) []secretBinding {
	var out []secretBinding
	for _, entry := range env.Entries() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := env.Lookup(target); set {
			continue
		}
		out = append(out, secretBinding{target: target, path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].target < out[j].target })
	return out
}

func injectSecrets(ctx context.Context, provider SecretProvider, env environment) error {
	bindings := secretBindings(env)
	if len(bindings) == 0 {
		return nil
	}

	targets := make([]string, len(bindings))
	paths := make([]string, len(bindings))
	for i, b := range bindings {
		targets[i] = b.target
		paths[i] = b.path
	}

	if provider == nil {
		return configErr(ErrSecretResolution, nil, "no secret provider to resolve %s", strings.Join(targets, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, secretResolveTimeout)
	defer cancel()

	values, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return configErr(ErrSecretResolution, err, "resolving %s", strings.Join(targets, ", "))
	}

	var missing []string
	for _, b := range bindings {
		value, ok := values[b.path]
		if !ok {
			missing = append(missing, b.target)
			continue
		}
		if err := env.Set(b.target, value); err != nil {
			return configErr(ErrSecretResolution, err, "setting %s", b.target)
		}
	}
	if len(missing) > 0 {
		return configErr(ErrSecretResolution, nil, "parameters not found for %s", strings.Join(missing, ", "))
	}
	return nil
}
