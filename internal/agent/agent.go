package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"charm.land/fantasy"

	"sqlchat/internal/chart"
	"sqlchat/internal/chat"
	"sqlchat/internal/database"
)

// DefaultMaxSteps bounds the model and tool round trips for one question.
const DefaultMaxSteps = 15

// AgentConfig holds the configuration for creating a SQL agent
type AgentConfig struct {
	creds        Credentials
	model        fantasy.LanguageModel
	systemPrompt string
	topK         int
	maxSteps     int
	memoryWindow int
	db           Database
	slot         *chart.Slot
}

// AgentOption is a functional option for configuring the agent
type AgentOption func(*AgentConfig) error

// WithCredentials sets the provider, key and model in one go
func WithCredentials(creds Credentials) AgentOption {
	return func(c *AgentConfig) error {
		c.creds = creds
		return nil
	}
}

// WithProvider selects the hosted LLM API
func WithProvider(p Provider) AgentOption {
	return func(c *AgentConfig) error {
		if _, err := ParseProvider(string(p)); err != nil {
			return err
		}
		c.creds.Provider = p
		return nil
	}
}

// WithAPIKey sets the provider API key
func WithAPIKey(apiKey string) AgentOption {
	return func(c *AgentConfig) error {
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		c.creds.APIKey = apiKey
		return nil
	}
}

// WithModel sets the model to use (default depends on the provider)
func WithModel(model string) AgentOption {
	return func(c *AgentConfig) error {
		if model == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.creds.Model = model
		return nil
	}
}

// WithAzure points the agent at an Azure OpenAI deployment
func WithAzure(endpoint, deployment, apiVersion string) AgentOption {
	return func(c *AgentConfig) error {
		c.creds.Provider = ProviderAzure
		c.creds.AzureEndpoint = endpoint
		c.creds.AzureDeployment = deployment
		c.creds.AzureAPIVersion = apiVersion
		return nil
	}
}

// WithLanguageModel uses an already constructed model and skips provider setup
func WithLanguageModel(model fantasy.LanguageModel) AgentOption {
	return func(c *AgentConfig) error {
		c.model = model
		return nil
	}
}

// WithSystemPrompt replaces the generated SQL prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *AgentConfig) error {
		c.systemPrompt = prompt
		return nil
	}
}

// WithTopK sets the default number of rows the model asks for
func WithTopK(k int) AgentOption {
	return func(c *AgentConfig) error {
		if k <= 0 {
			return fmt.Errorf("top-k must be positive, got %d", k)
		}
		c.topK = k
		return nil
	}
}

// WithMaxSteps bounds the tool-calling loop
func WithMaxSteps(n int) AgentOption {
	return func(c *AgentConfig) error {
		if n <= 0 {
			return fmt.Errorf("max steps must be positive, got %d", n)
		}
		c.maxSteps = n
		return nil
	}
}

// WithMemoryWindow keeps only the last n exchanges in memory (0 keeps all)
func WithMemoryWindow(n int) AgentOption {
	return func(c *AgentConfig) error {
		if n < 0 {
			return fmt.Errorf("memory window cannot be negative")
		}
		c.memoryWindow = n
		return nil
	}
}

// WithDatabase binds the agent's tools to a database
func WithDatabase(db Database) AgentOption {
	return func(c *AgentConfig) error {
		c.db = db
		return nil
	}
}

// WithChartSlot sets where rendered charts are left for the caller
func WithChartSlot(slot *chart.Slot) AgentOption {
	return func(c *AgentConfig) error {
		c.slot = slot
		return nil
	}
}

// SQLAgent answers questions about one database and remembers the
// conversation.
type SQLAgent struct {
	agent    fantasy.Agent
	provider Provider
	tools    *Toolkit
	memory   *Memory
	trace    *Trace
}

// NewSQLAgent creates a Fantasy agent with the SQL toolkit and a fresh
// conversation memory.
func NewSQLAgent(ctx context.Context, opts ...AgentOption) (*SQLAgent, error) {
	config := &AgentConfig{
		creds:    Credentials{Provider: ProviderOpenAI},
		topK:     DefaultTopK,
		maxSteps: DefaultMaxSteps,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if config.db == nil {
		return nil, fmt.Errorf("database is required (use WithDatabase)")
	}
	if config.slot == nil {
		config.slot = &chart.Slot{}
	}
	if config.systemPrompt == "" {
		config.systemPrompt = SQLPrompt(config.db.Dialect(), config.topK)
	}

	model := config.model
	if model == nil {
		var err error
		model, err = NewLanguageModel(ctx, config.creds)
		if err != nil {
			return nil, err
		}
	}

	trace := &Trace{}
	tools := NewToolkit(config.db, config.slot, trace)

	agent := fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(config.systemPrompt),
		fantasy.WithTools(tools.Tools()...),
		fantasy.WithStopConditions(fantasy.StepCountIs(config.maxSteps)),
	)

	return &SQLAgent{
		agent:    agent,
		provider: config.creds.Provider,
		tools:    tools,
		memory:   NewMemory(config.memoryWindow),
		trace:    trace,
	}, nil
}

// Invoke answers one question. The question and answer are added to memory
// only when the model produced an answer. A key the provider rejects is
// reported as *AuthenticationError.
func (a *SQLAgent) Invoke(ctx context.Context, input string) (chat.Reply, error) {
	a.trace.Drain()

	result, err := a.agent.Generate(ctx, fantasy.AgentCall{
		Prompt:   input,
		Messages: a.memory.Messages(),
	})
	steps := a.trace.Drain()
	if err != nil {
		if authErr := authError(a.provider, err); authErr != nil {
			return chat.Reply{Steps: steps}, authErr
		}
		return chat.Reply{Steps: steps}, fmt.Errorf("failed to generate response: %w", err)
	}

	output := strings.TrimSpace(result.Response.Content.Text())
	a.memory.Append(input, output)
	slog.Debug("Agent answered", "steps", len(steps), "memory", a.memory.Len())
	return chat.Reply{Output: output, Steps: steps}, nil
}

// Memory exposes the conversation buffer.
func (a *SQLAgent) Memory() *Memory {
	return a.memory
}

// Toolkit exposes the tools bound to the agent's database.
func (a *SQLAgent) Toolkit() *Toolkit {
	return a.tools
}

// Factory returns a chat.AgentFactory that builds one SQLAgent per database
// handle with the given options.
func Factory(opts ...AgentOption) chat.AgentFactory {
	return func(ctx context.Context, h *database.Handle, slot *chart.Slot) (chat.Agent, error) {
		all := append([]AgentOption{}, opts...)
		all = append(all, WithDatabase(h), WithChartSlot(slot))
		a, err := NewSQLAgent(ctx, all...)
		if err != nil {
			return nil, err
		}
		slog.Info("SQL agent created", "database", h.String(), "dialect", h.Dialect())
		return a, nil
	}
}
