package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasassist/assistant"
	"atlasassist/llm"
	"atlasassist/logging"
	"atlasassist/metrics"
)

type stubAssistant struct {
	response *assistant.ChatResponse
	err      error
	tools    []llm.Tool
	toolsErr error

	gotSessionID string
	gotMessage   string
}

func (s *stubAssistant) ProcessMessage(sessionID, message string) (*assistant.ChatResponse, error) {
	s.gotSessionID = sessionID
	s.gotMessage = message
	return s.response, s.err
}

func (s *stubAssistant) ToolsForSession(sessionID string) ([]llm.Tool, error) {
	s.gotSessionID = sessionID
	return s.tools, s.toolsErr
}

func newTestRouter(stub *stubAssistant) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(stub, metrics.NewNoopMetrics(), logging.NewDefault()).Router()
}

func TestChatEndpoint(t *testing.T) {
	stub := &stubAssistant{
		response: &assistant.ChatResponse{
			SessionID: "session-1",
			Message:   "DEMO-1 is Done.",
		},
	}
	router := newTestRouter(stub)

	body, err := json.Marshal(map[string]string{
		"sessionId": "session-1",
		"message":   "status of DEMO-1?",
	})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "session-1", stub.gotSessionID)
	assert.Equal(t, "status of DEMO-1?", stub.gotMessage)

	var response assistant.ChatResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "DEMO-1 is Done.", response.Message)
	assert.Equal(t, "session-1", response.SessionID)
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	router := newTestRouter(&stubAssistant{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{"sessionId":"x"}`)))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestChatEndpointAssistantError(t *testing.T) {
	router := newTestRouter(&stubAssistant{err: assert.AnError})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{"message":"hi"}`)))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestToolsEndpoint(t *testing.T) {
	stub := &stubAssistant{
		tools: []llm.Tool{
			{Name: "create_ticket", Description: "Creates a new JIRA ticket."},
			{Name: "get_page", Description: "Retrieves a Confluence page by ID."},
		},
	}
	router := newTestRouter(stub)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "discovery", stub.gotSessionID)

	var tools []toolInfo
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &tools))
	require.Len(t, tools, 2)
	assert.Equal(t, "create_ticket", tools[0].Name)
}

func TestToolsEndpointSessionID(t *testing.T) {
	stub := &stubAssistant{}
	router := newTestRouter(stub)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/v1/tools?sessionId=abc", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "abc", stub.gotSessionID)
}

func TestIndexServesChatPage(t *testing.T) {
	router := newTestRouter(&stubAssistant{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, recorder.Body.String(), "/api/v1/chat")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&stubAssistant{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}
