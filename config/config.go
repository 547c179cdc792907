package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"atlasassist/llm"
	"atlasassist/mcp"
	"atlasassist/openai"
)

const (
	DefaultJiraListen       = ":8000"
	DefaultConfluenceListen = ":8001"
	DefaultChatListen       = ":8080"

	DefaultJiraMCPURL       = "http://127.0.0.1:8000/mcp"
	DefaultConfluenceMCPURL = "http://127.0.0.1:8001/mcp"
)

// JiraConfig holds the credentials for the Jira REST API.
type JiraConfig struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	APIToken string `json:"apiToken"`
}

func (c JiraConfig) Validate() error {
	if c.URL == "" || c.Username == "" || c.APIToken == "" {
		return errors.New("Jira credentials not configured. Please set JIRA_URL, JIRA_USER, and JIRA_TOKEN")
	}
	return nil
}

// ConfluenceConfig holds the credentials for the Confluence REST API.
type ConfluenceConfig struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	APIToken string `json:"apiToken"`
}

func (c ConfluenceConfig) Validate() error {
	if c.URL == "" || c.Username == "" || c.APIToken == "" {
		return errors.New("Confluence credentials not configured. Please set CONFLUENCE_URL, CONFLUENCE_USERNAME, and CONFLUENCE_API_TOKEN")
	}
	return nil
}

// HTTPConfig holds the listen addresses of the three processes.
type HTTPConfig struct {
	JiraListen       string `json:"jiraListen"`
	ConfluenceListen string `json:"confluenceListen"`
	ChatListen       string `json:"chatListen"`
}

type Config struct {
	Jira               JiraConfig        `json:"jira"`
	Confluence         ConfluenceConfig  `json:"confluence"`
	Service            llm.ServiceConfig `json:"service"`
	MCP                mcp.Config        `json:"mcp"`
	HTTP               HTTPConfig        `json:"http"`
	AssistantName      string            `json:"assistantName"`
	CustomInstructions string            `json:"customInstructions"`
	EnableLLMTrace     bool              `json:"enableLLMTrace"`
}

func (c *Config) Clone() *Config {
	clone, err := DeepCopyJSON(*c)
	if err != nil {
		panic(fmt.Sprintf("failed to clone configuration: %v", err))
	}

	return &clone
}

// Load reads the configuration from the environment, merging in an optional
// .env file first. Missing credentials are not an error here since each
// process only needs a subset; the commands validate what they use.
func Load() (*Config, error) {
	// A missing .env file is fine, the environment may be fully set already.
	_ = godotenv.Overload()

	cfg := &Config{
		Jira: JiraConfig{
			URL:      os.Getenv("JIRA_URL"),
			Username: os.Getenv("JIRA_USER"),
			APIToken: os.Getenv("JIRA_TOKEN"),
		},
		Confluence: ConfluenceConfig{
			URL:      os.Getenv("CONFLUENCE_URL"),
			Username: os.Getenv("CONFLUENCE_USERNAME"),
			APIToken: os.Getenv("CONFLUENCE_API_TOKEN"),
		},
		Service: llm.ServiceConfig{
			Name:         "assistant",
			Type:         envDefault("LLM_SERVICE_TYPE", llm.ServiceTypeOpenAI),
			APIKey:       os.Getenv("LLM_API_KEY"),
			OrgID:        os.Getenv("LLM_ORG_ID"),
			DefaultModel: envDefault("LLM_MODEL", "gpt-4o-mini"),
			APIURL:       os.Getenv("LLM_API_URL"),
		},
		HTTP: HTTPConfig{
			JiraListen:       envDefault("JIRA_MCP_LISTEN", DefaultJiraListen),
			ConfluenceListen: envDefault("CONFLUENCE_MCP_LISTEN", DefaultConfluenceListen),
			ChatListen:       envDefault("CHAT_LISTEN", DefaultChatListen),
		},
		AssistantName:      envDefault("ASSISTANT_NAME", "Jira & Confluence AI Assistant"),
		CustomInstructions: os.Getenv("ASSISTANT_CUSTOM_INSTRUCTIONS"),
		EnableLLMTrace:     envBool("ENABLE_LLM_TRACE"),
	}

	// The vendor specific key variables win over the generic one when set.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && isOpenAIType(cfg.Service.Type) {
		cfg.Service.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Service.Type == llm.ServiceTypeAnthropic {
		cfg.Service.APIKey = key
	}

	if v := os.Getenv("LLM_INPUT_TOKEN_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid LLM_INPUT_TOKEN_LIMIT")
		}
		cfg.Service.InputTokenLimit = limit
	}
	if v := os.Getenv("LLM_STREAMING_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid LLM_STREAMING_TIMEOUT_SECONDS")
		}
		cfg.Service.StreamingTimeoutSeconds = seconds
	}

	idleTimeout := 0
	if v := os.Getenv("MCP_IDLE_TIMEOUT_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid MCP_IDLE_TIMEOUT_MINUTES")
		}
		idleTimeout = minutes
	}

	cfg.MCP = mcp.Config{
		Enabled: true,
		Servers: map[string]mcp.ServerConfig{
			"jira_server": {
				BaseURL: envDefault("JIRA_MCP_URL", DefaultJiraMCPURL),
			},
			"confluence_server": {
				BaseURL: envDefault("CONFLUENCE_MCP_URL", DefaultConfluenceMCPURL),
			},
		},
		IdleTimeoutMinutes: idleTimeout,
	}

	return cfg, nil
}

func isOpenAIType(serviceType string) bool {
	return serviceType == llm.ServiceTypeOpenAI ||
		serviceType == llm.ServiceTypeOpenAICompatible ||
		serviceType == llm.ServiceTypeAzure
}

func envDefault(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

func envBool(name string) bool {
	value, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && value
}

type UpdateListener func()

type Container struct {
	cfg       atomic.Pointer[Config]
	listeners []UpdateListener
}

// Config returns the whole configuration readonly.
func (c *Container) Config() *Config {
	return c.cfg.Load()
}

func (c *Container) GetEnableLLMTrace() bool {
	return c.cfg.Load().EnableLLMTrace
}

func (c *Container) MCP() mcp.Config {
	return c.cfg.Load().MCP
}

func (c *Container) RegisterUpdateListener(listener UpdateListener) {
	c.listeners = append(c.listeners, listener)
}

// Update replaces the current configuration.
// The new configuration is deep-copied to ensure the new and old
// configurations are independent of each other.
func (c *Container) Update(newConfig *Config) {
	if newConfig == nil {
		c.cfg.Store(nil)
		return
	}
	clone, err := DeepCopyJSON(*newConfig)
	if err != nil {
		panic(fmt.Sprintf("failed to deep copy configuration: %v", err))
	}

	c.cfg.Store(&clone)

	for _, listener := range c.listeners {
		listener()
	}
}

// DeepCopyJSON creates a deep copy of JSON-serializable structs
func DeepCopyJSON[T any](src T) (T, error) {
	var dst T
	data, err := json.Marshal(src)
	if err != nil {
		return dst, err
	}
	err = json.Unmarshal(data, &dst)
	return dst, err
}

func OpenAIConfigFromServiceConfig(serviceConfig llm.ServiceConfig) openai.Config {
	streamingTimeout := time.Second * 30
	if serviceConfig.StreamingTimeoutSeconds > 0 {
		streamingTimeout = time.Duration(serviceConfig.StreamingTimeoutSeconds) * time.Second
	}

	return openai.Config{
		APIKey:           serviceConfig.APIKey,
		APIURL:           serviceConfig.APIURL,
		OrgID:            serviceConfig.OrgID,
		DefaultModel:     serviceConfig.DefaultModel,
		InputTokenLimit:  serviceConfig.InputTokenLimit,
		OutputTokenLimit: serviceConfig.OutputTokenLimit,
		StreamingTimeout: streamingTimeout,
		SendUserID:       serviceConfig.SendUserID,
	}
}
