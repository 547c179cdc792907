package mcp

import (
	"fmt"
	"sync"
	"time"

	"atlasassist/llm"
	"atlasassist/logging"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	reapInterval       = 5 * time.Minute
)

// Config controls the client side of the MCP integration: which servers a
// session connects to and how long an unused session connection is kept.
type Config struct {
	Enabled            bool                    `json:"enabled"`
	Servers            map[string]ServerConfig `json:"servers"`
	IdleTimeoutMinutes int                     `json:"idleTimeoutMinutes"`
}

// ClientManager hands out one SessionClient per chat session and reaps
// connections that have been idle past the configured timeout.
type ClientManager struct {
	config      Config
	log         logging.Logger
	mu          sync.RWMutex
	clients     map[string]*SessionClient
	reapTicker  *time.Ticker
	closeChan   chan struct{}
	idleTimeout time.Duration
}

func NewClientManager(config Config, log logging.Logger) *ClientManager {
	manager := &ClientManager{
		log: log,
	}
	manager.ReInit(config)
	return manager
}

// ReInit tears down every existing session connection and applies a new
// configuration. Used by the config update listener.
func (m *ClientManager) ReInit(config Config) {
	m.Close()

	m.config = config
	m.clients = make(map[string]*SessionClient)
	m.idleTimeout = defaultIdleTimeout
	if config.IdleTimeoutMinutes > 0 {
		m.idleTimeout = time.Duration(config.IdleTimeoutMinutes) * time.Minute
	}
	m.closeChan = make(chan struct{})
	m.reapTicker = time.NewTicker(reapInterval)

	go m.reapLoop()
}

// Close stops the reaper and closes every session connection. The manager
// is unusable afterwards until ReInit is called.
func (m *ClientManager) Close() {
	if m.closeChan == nil {
		return
	}
	close(m.closeChan)
	m.closeChan = nil
	m.reapTicker.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, client := range m.clients {
		client.Close()
	}
	m.clients = make(map[string]*SessionClient)
}

func (m *ClientManager) reapLoop() {
	for {
		select {
		case <-m.reapTicker.C:
			m.reapIdleClients(time.Now())
		case <-m.closeChan:
			m.reapTicker.Stop()
			return
		}
	}
}

// reapIdleClients closes and forgets every session whose last activity is
// older than the idle timeout.
func (m *ClientManager) reapIdleClients(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sessionID, client := range m.clients {
		idle := now.Sub(client.lastActivity)
		if idle <= m.idleTimeout {
			continue
		}
		m.log.Debug("Closing idle MCP session client", "sessionID", sessionID, "idle", idle)
		client.Close()
		delete(m.clients, sessionID)
	}
}

// GetToolsForSession returns the tools available to a session, connecting
// the session to the configured servers on first use.
func (m *ClientManager) GetToolsForSession(sessionID string) ([]llm.Tool, error) {
	if !m.config.Enabled || len(m.config.Servers) == 0 {
		return []llm.Tool{}, nil
	}

	client, err := m.clientForSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get MCP client for session %s: %w", sessionID, err)
	}

	return client.GetTools(), nil
}

func (m *ClientManager) clientForSession(sessionID string) (*SessionClient, error) {
	m.mu.RLock()
	client, ok := m.clients[sessionID]
	m.mu.RUnlock()
	if ok {
		client.lastActivity = time.Now()
		return client, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another request may have connected the session while we waited.
	if client, ok := m.clients[sessionID]; ok {
		client.lastActivity = time.Now()
		return client, nil
	}

	client = &SessionClient{
		log:          m.log,
		clients:      make(map[string]*ServerConnection),
		toolDefs:     make(map[string]ToolDefinition),
		lastActivity: time.Now(),
		sessionID:    sessionID,
	}
	if err := client.ConnectToAllServers(m.config.Servers); err != nil {
		return nil, fmt.Errorf("failed to initialize MCP client for session %s: %w", sessionID, err)
	}
	m.clients[sessionID] = client

	return client, nil
}
