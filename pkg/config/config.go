// Package config assembles the gateway configuration from an optional YAML
// file plus environment variables. Environment values override file values;
// a .env file is honored when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ainqa-health/aigateway/pkg/model"
)

const (
	defaultMaxRetries     = 1
	defaultAttemptTimeout = 100 * time.Second
)

type fileConfig struct {
	Providers struct {
		OpenAI struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
		Anthropic struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"anthropic"`
		Google struct {
			APIKey                string `yaml:"api_key"`
			BaseURL               string `yaml:"base_url"`
			UseDefaultCredentials bool   `yaml:"use_default_credentials"`
			ProjectID             string `yaml:"project_id"`
			Location              string `yaml:"location"`
		} `yaml:"google"`
		DeepInfra struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"deepinfra"`
		Custom struct {
			Name        string `yaml:"name"`
			APIKey      string `yaml:"api_key"`
			BaseURL     string `yaml:"base_url"`
			URLStrategy string `yaml:"url_strategy"`
		} `yaml:"custom"`
	} `yaml:"providers"`
	Defaults struct {
		LLM struct {
			Primary  string `yaml:"primary"`
			Fallback string `yaml:"fallback"`
		} `yaml:"llm"`
		Embedding struct {
			Primary  string `yaml:"primary"`
			Fallback string `yaml:"fallback"`
		} `yaml:"embedding"`
	} `yaml:"defaults"`
	Retry struct {
		PrimaryMaxRetries  int     `yaml:"primary_max_retries"`
		FallbackMaxRetries int     `yaml:"fallback_max_retries"`
		BackoffSeconds     float64 `yaml:"backoff_seconds"`
		AttemptTimeoutSecs float64 `yaml:"attempt_timeout_seconds"`
	} `yaml:"retry"`
	Redis *struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	LogLevel string `yaml:"log_level"`
}

// ParseModelRef parses a "provider/model" reference. Model ids may themselves
// contain slashes (DeepInfra hosts org/model ids), so only the first slash
// separates the provider.
func ParseModelRef(ref string) (model.ModelConfig, error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return model.ModelConfig{}, model.NewConfigError("model reference %q is not in provider/model form", ref)
	}
	return model.ModelConfig{Provider: model.ProviderID(parts[0]), ModelID: parts[1]}, nil
}

// Load builds the configuration. path may be empty, in which case the
// environment alone drives everything.
func Load(path string) (model.Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg model.Config
	cfg.Retry = model.RetryConfig{
		PrimaryMaxRetries:  defaultMaxRetries,
		FallbackMaxRetries: defaultMaxRetries,
		AttemptTimeout:     defaultAttemptTimeout,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return model.Config{}, errors.Wrapf(err, "reading config file %s", path)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return model.Config{}, errors.Wrapf(err, "parsing config file %s", path)
		}
		if err := applyFile(&cfg, fc); err != nil {
			return model.Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *model.Config, fc fileConfig) error {
	cfg.OpenAI = model.ProviderCredentials{APIKey: fc.Providers.OpenAI.APIKey, BaseURL: fc.Providers.OpenAI.BaseURL}
	cfg.Anthropic = model.ProviderCredentials{APIKey: fc.Providers.Anthropic.APIKey, BaseURL: fc.Providers.Anthropic.BaseURL}
	cfg.Google = model.ProviderCredentials{
		APIKey:                fc.Providers.Google.APIKey,
		BaseURL:               fc.Providers.Google.BaseURL,
		UseDefaultCredentials: fc.Providers.Google.UseDefaultCredentials,
		ProjectID:             fc.Providers.Google.ProjectID,
		Location:              fc.Providers.Google.Location,
	}
	cfg.DeepInfra = model.ProviderCredentials{APIKey: fc.Providers.DeepInfra.APIKey, BaseURL: fc.Providers.DeepInfra.BaseURL}

	if fc.Providers.Custom.BaseURL != "" {
		cfg.Custom = &model.CustomProviderConfig{
			Name:        fc.Providers.Custom.Name,
			APIKey:      fc.Providers.Custom.APIKey,
			BaseURL:     fc.Providers.Custom.BaseURL,
			URLStrategy: model.URLStrategy(fc.Providers.Custom.URLStrategy),
		}
	}

	refs := map[string]struct {
		ref    string
		target *model.ModelConfig
	}{
		"defaults.llm.primary":        {fc.Defaults.LLM.Primary, &cfg.Defaults.LLMPrimary},
		"defaults.llm.fallback":       {fc.Defaults.LLM.Fallback, &cfg.Defaults.LLMFallback},
		"defaults.embedding.primary":  {fc.Defaults.Embedding.Primary, &cfg.Defaults.EmbeddingPrimary},
		"defaults.embedding.fallback": {fc.Defaults.Embedding.Fallback, &cfg.Defaults.EmbeddingFallback},
	}
	for name, entry := range refs {
		if entry.ref == "" {
			continue
		}
		mc, err := ParseModelRef(entry.ref)
		if err != nil {
			return errors.Wrap(err, name)
		}
		*entry.target = mc
	}

	if fc.Retry.PrimaryMaxRetries > 0 {
		cfg.Retry.PrimaryMaxRetries = fc.Retry.PrimaryMaxRetries
	}
	if fc.Retry.FallbackMaxRetries > 0 {
		cfg.Retry.FallbackMaxRetries = fc.Retry.FallbackMaxRetries
	}
	if fc.Retry.BackoffSeconds > 0 {
		cfg.Retry.Backoff = time.Duration(fc.Retry.BackoffSeconds * float64(time.Second))
	}
	if fc.Retry.AttemptTimeoutSecs > 0 {
		cfg.Retry.AttemptTimeout = time.Duration(fc.Retry.AttemptTimeoutSecs * float64(time.Second))
	}

	if fc.Redis != nil {
		cfg.RedisConfig = &model.RedisConfig{Addr: fc.Redis.Addr, Password: fc.Redis.Password, DB: fc.Redis.DB}
	}
	cfg.LogLevel = fc.LogLevel
	return nil
}

func applyEnv(cfg *model.Config) error {
	setString := func(target *string, key string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Anthropic.BaseURL, "ANTHROPIC_BASE_URL")
	setString(&cfg.Google.APIKey, "GOOGLE_API_KEY")
	setString(&cfg.Google.BaseURL, "GOOGLE_BASE_URL")
	setString(&cfg.Google.ProjectID, "GOOGLE_PROJECT_ID")
	setString(&cfg.Google.Location, "GOOGLE_LOCATION")
	if v := os.Getenv("GOOGLE_USE_DEFAULT_CREDENTIALS"); v != "" {
		useADC, err := strconv.ParseBool(v)
		if err != nil {
			return model.NewConfigError("GOOGLE_USE_DEFAULT_CREDENTIALS: %q is not a boolean", v)
		}
		cfg.Google.UseDefaultCredentials = useADC
	}
	setString(&cfg.DeepInfra.APIKey, "DEEPINFRA_API_KEY")
	setString(&cfg.DeepInfra.BaseURL, "DEEPINFRA_BASE_URL")

	if v := os.Getenv("CUSTOM_PROVIDER_BASE_URL"); v != "" {
		if cfg.Custom == nil {
			cfg.Custom = &model.CustomProviderConfig{URLStrategy: model.URLStandard}
		}
		cfg.Custom.BaseURL = v
		setString(&cfg.Custom.Name, "CUSTOM_PROVIDER_NAME")
		setString(&cfg.Custom.APIKey, "CUSTOM_PROVIDER_API_KEY")
		if s := os.Getenv("CUSTOM_PROVIDER_URL_STRATEGY"); s != "" {
			cfg.Custom.URLStrategy = model.URLStrategy(s)
		}
	}

	envRefs := map[string]*model.ModelConfig{
		"LLM_PRIMARY":        &cfg.Defaults.LLMPrimary,
		"LLM_FALLBACK":       &cfg.Defaults.LLMFallback,
		"EMBEDDING_PRIMARY":  &cfg.Defaults.EmbeddingPrimary,
		"EMBEDDING_FALLBACK": &cfg.Defaults.EmbeddingFallback,
	}
	for key, target := range envRefs {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		mc, err := ParseModelRef(v)
		if err != nil {
			return errors.Wrap(err, key)
		}
		*target = mc
	}

	setInt := func(target *int, key string) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return model.NewConfigError("%s: %q is not an integer", key, v)
		}
		*target = n
		return nil
	}
	if err := setInt(&cfg.Retry.PrimaryMaxRetries, "GATEWAY_PRIMARY_MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt(&cfg.Retry.FallbackMaxRetries, "GATEWAY_FALLBACK_MAX_RETRIES"); err != nil {
		return err
	}
	if v := os.Getenv("GATEWAY_BACKOFF_SECONDS"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.NewConfigError("GATEWAY_BACKOFF_SECONDS: %q is not a number", v)
		}
		cfg.Retry.Backoff = time.Duration(secs * float64(time.Second))
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if cfg.RedisConfig == nil {
			cfg.RedisConfig = &model.RedisConfig{}
		}
		cfg.RedisConfig.Addr = v
		cfg.RedisConfig.Password = os.Getenv("REDIS_PASSWORD")
		if db := os.Getenv("REDIS_DB"); db != "" {
			n, err := strconv.Atoi(db)
			if err != nil {
				return model.NewConfigError("REDIS_DB: %q is not an integer", db)
			}
			cfg.RedisConfig.DB = n
		}
	}

	setString(&cfg.LogLevel, "GATEWAY_LOG_LEVEL")
	return nil
}
