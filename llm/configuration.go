package llm

type ServiceConfig struct {
	Name                    string `json:"name"`
	Type                    string `json:"type"`
	APIKey                  string `json:"apiKey"`
	OrgID                   string `json:"orgId"`
	DefaultModel            string `json:"defaultModel"`
	APIURL                  string `json:"apiURL"`
	InputTokenLimit         int    `json:"inputTokenLimit"`
	OutputTokenLimit        int    `json:"outputTokenLimit"`
	StreamingTimeoutSeconds int    `json:"streamingTimeoutSeconds"`
	SendUserID              bool   `json:"sendUserID"`
}

func (c *ServiceConfig) IsValid() bool {
	switch c.Type {
	case ServiceTypeOpenAICompatible, ServiceTypeAzure:
		return c.APIURL != ""
	case ServiceTypeOpenAI, ServiceTypeAnthropic:
		return c.APIKey != ""
	default:
		return false
	}
}
