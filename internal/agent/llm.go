package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/azure"
	"charm.land/fantasy/providers/openai"
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go/v2"
	openaiazure "github.com/openai/openai-go/v2/azure"
	openaioption "github.com/openai/openai-go/v2/option"
)

// Provider names a hosted LLM API.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderAnthropic Provider = "anthropic"
)

// Default models per provider. Azure uses the deployment name instead.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultAzureVersion   = "2024-02-01"
)

// ParseProvider accepts the provider names used in configuration.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "openai":
		return ProviderOpenAI, nil
	case "azure", "azure-openai", "azure_openai":
		return ProviderAzure, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("unknown LLM provider %q (want openai, azure or anthropic)", s)
	}
}

// Credentials select and authenticate a hosted model.
type Credentials struct {
	Provider        Provider
	APIKey          string
	Model           string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
}

// ModelID returns the model the credentials will talk to.
func (c Credentials) ModelID() string {
	if c.Provider == ProviderAzure {
		return c.AzureDeployment
	}
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

// Validate reports the first missing setting as a *ConfigError.
func (c Credentials) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.APIKey == "" {
			return &ConfigError{Provider: c.Provider, Missing: "API key"}
		}
	case ProviderAzure:
		switch {
		case c.APIKey == "":
			return &ConfigError{Provider: c.Provider, Missing: "API key"}
		case c.AzureEndpoint == "":
			return &ConfigError{Provider: c.Provider, Missing: "endpoint"}
		case c.AzureDeployment == "":
			return &ConfigError{Provider: c.Provider, Missing: "deployment name"}
		}
	default:
		return &ConfigError{Provider: c.Provider, Missing: "provider"}
	}
	return nil
}

func (c Credentials) azureVersion() string {
	if c.AzureAPIVersion == "" {
		return DefaultAzureVersion
	}
	return c.AzureAPIVersion
}

// ConfigError reports LLM settings that are missing.
type ConfigError struct {
	Provider Provider
	Missing  string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("LLM %s is not configured", e.Missing)
	}
	return fmt.Sprintf("%s %s is not configured", e.Provider, e.Missing)
}

// AuthenticationError reports a credential the provider rejected.
type AuthenticationError struct {
	Provider Provider
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s rejected the API key, please check it and try again", e.Provider)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err is or wraps an *AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// NewLanguageModel creates the fantasy model the credentials point at.
func NewLanguageModel(ctx context.Context, creds Credentials) (fantasy.LanguageModel, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var (
		provider fantasy.Provider
		err      error
	)
	switch creds.Provider {
	case ProviderOpenAI:
		provider, err = openai.New(openai.WithAPIKey(creds.APIKey))
	case ProviderAzure:
		provider, err = azure.New(
			azure.WithBaseURL(creds.AzureEndpoint),
			azure.WithAPIKey(creds.APIKey),
			azure.WithAPIVersion(creds.azureVersion()),
		)
	case ProviderAnthropic:
		provider, err = anthropic.New(anthropic.WithAPIKey(creds.APIKey))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", creds.Provider, err)
	}

	model, err := provider.LanguageModel(ctx, creds.ModelID())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model %s: %w", creds.ModelID(), err)
	}
	return model, nil
}

// ModelInfo is one model visible to an API key.
type ModelInfo struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
}

// ListModels lists the chat models the credentials can use, oldest first.
// A rejected key is reported as *AuthenticationError, which makes this the
// credential check as well.
func ListModels(ctx context.Context, creds Credentials) ([]ModelInfo, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var (
		models []ModelInfo
		err    error
	)
	switch creds.Provider {
	case ProviderAnthropic:
		models, err = listAnthropicModels(ctx, creds)
	default:
		models, err = listOpenAIModels(ctx, creds)
	}
	if err != nil {
		return nil, classifyAPIError(creds.Provider, err)
	}

	sort.SliceStable(models, func(i, j int) bool {
		return models[i].Created.Before(models[j].Created)
	})
	return models, nil
}

// VerifyCredentials makes one cheap authenticated call.
func VerifyCredentials(ctx context.Context, creds Credentials) error {
	_, err := ListModels(ctx, creds)
	return err
}

func listOpenAIModels(ctx context.Context, creds Credentials) ([]ModelInfo, error) {
	opts := []openaioption.RequestOption{openaioption.WithAPIKey(creds.APIKey)}
	if creds.Provider == ProviderAzure {
		opts = append(opts,
			openaiazure.WithEndpoint(creds.AzureEndpoint, creds.azureVersion()),
			openaiazure.WithAPIKey(creds.APIKey),
		)
	}
	client := openaisdk.NewClient(opts...)

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, err
	}
	var models []ModelInfo
	for _, m := range page.Data {
		if creds.Provider == ProviderOpenAI && !strings.HasPrefix(m.ID, "gpt") {
			continue
		}
		models = append(models, ModelInfo{ID: m.ID, Created: time.Unix(m.Created, 0)})
	}
	return models, nil
}

func listAnthropicModels(ctx context.Context, creds Credentials) ([]ModelInfo, error) {
	client := anthropicsdk.NewClient(anthropicoption.WithAPIKey(creds.APIKey))

	page, err := client.Models.List(ctx, anthropicsdk.ModelListParams{})
	if err != nil {
		return nil, err
	}
	models := make([]ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelInfo{ID: m.ID, Created: m.CreatedAt})
	}
	return models, nil
}

// authError returns an *AuthenticationError when err carries a 401 or 403
// from the provider, and nil otherwise.
func authError(p Provider, err error) error {
	status := 0
	var provErr *fantasy.ProviderError
	var openaiErr *openaisdk.Error
	var anthropicErr *anthropicsdk.Error
	switch {
	case errors.As(err, &provErr):
		status = provErr.StatusCode
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthenticationError{Provider: p, Err: err}
	}
	return nil
}

func classifyAPIError(p Provider, err error) error {
	if authErr := authError(p, err); authErr != nil {
		return authErr
	}
	return fmt.Errorf("failed to list %s models: %w", p, err)
}
