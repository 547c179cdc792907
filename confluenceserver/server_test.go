package confluenceserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasassist/config"
	"atlasassist/logging"
)

func newTestServer(t *testing.T, confluenceHandler, jiraHandler http.Handler) *Server {
	t.Helper()

	confluenceAPI := httptest.NewServer(confluenceHandler)
	t.Cleanup(confluenceAPI.Close)
	jiraAPI := httptest.NewServer(jiraHandler)
	t.Cleanup(jiraAPI.Close)

	srv, err := New(
		config.ConfluenceConfig{URL: confluenceAPI.URL, Username: "user", APIToken: "token"},
		config.JiraConfig{URL: jiraAPI.URL, Username: "user", APIToken: "token"},
		logging.NewDefault(),
	)
	require.NoError(t, err)

	return srv
}

func callToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

func jiraSearchHandler(t *testing.T, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" {
			t.Errorf("unexpected Jira request: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.ConfluenceConfig{}, config.JiraConfig{}, logging.NewDefault())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLUENCE_URL")
}

func TestReportHTML(t *testing.T) {
	html := reportHTML("http://jira.example.com", "DEMO", []issueSummary{
		{Key: "DEMO-1", Summary: "Fix <script> issue", Status: "Done", Assignee: "Ada"},
		{Key: "DEMO-2", Summary: "Second", Status: "To Do", Assignee: "Unassigned"},
	})

	assert.Contains(t, html, "<h2>JIRA Project Status Report: DEMO</h2>")
	assert.Contains(t, html, "href='http://jira.example.com/browse/DEMO-1'")
	assert.Contains(t, html, "Fix &lt;script&gt; issue")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "<td>Unassigned</td>")
}

func TestCreateConfluenceReport(t *testing.T) {
	var createdPage map[string]any
	confluenceHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/api/content/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createdPage))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"4242","type":"page","title":"PROJECT STATUS REPORT"}`))
	})

	srv := newTestServer(t, confluenceHandler, jiraSearchHandler(t, `{
		"startAt": 0, "maxResults": 50, "total": 1,
		"issues": [
			{"key":"DEMO-1","fields":{"summary":"First","status":{"name":"Done"},"assignee":{"displayName":"Ada"}}}
		]
	}`))

	result, err := srv.handleCreateReport(context.Background(), callToolRequest("create_confluence_report", map[string]any{
		"page_title":           "PROJECT STATUS REPORT",
		"confluence_space_key": "SPACE",
		"jira_project_key":     "DEMO",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "PROJECT STATUS REPORT", response["page_title"])
	assert.Contains(t, response["page_url"], "/spaces/SPACE/pages/4242")

	body := createdPage["body"].(map[string]any)["storage"].(map[string]any)
	assert.Equal(t, "storage", body["representation"])
	assert.Contains(t, body["value"], "DEMO-1")
}

func TestCreateReportNoIssues(t *testing.T) {
	confluenceHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no page should be created")
	})

	srv := newTestServer(t, confluenceHandler, jiraSearchHandler(t, `{"startAt":0,"maxResults":50,"total":0,"issues":[]}`))

	result, err := srv.handleCreateReport(context.Background(), callToolRequest("create_confluence_report", map[string]any{
		"page_title":           "PROJECT STATUS REPORT",
		"confluence_space_key": "SPACE",
		"jira_project_key":     "EMPTY",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No issues found for project 'EMPTY'")
}

func TestCreatePage(t *testing.T) {
	confluenceHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/api/content/", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"100","type":"page","title":"Notes"}`))
	})

	srv := newTestServer(t, confluenceHandler, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Jira should not be called")
	}))

	result, err := srv.handleCreatePage(context.Background(), callToolRequest("create_page", map[string]any{
		"space_key": "SPACE",
		"title":     "Notes",
		"content":   "<p>hello</p>",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "100", response["page_id"])
	assert.Contains(t, response["page_url"], "/spaces/SPACE/pages/100")
}

func TestUpdatePage(t *testing.T) {
	var updateBody map[string]any
	confluenceHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			require.Equal(t, "/rest/api/content/100", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"100","type":"page","title":"Notes","version":{"number":3},"space":{"key":"SPACE"}}`))
		case http.MethodPut:
			require.Equal(t, "/rest/api/content/100", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updateBody))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"100","type":"page","title":"Notes","version":{"number":4}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	srv := newTestServer(t, confluenceHandler, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Jira should not be called")
	}))

	result, err := srv.handleUpdatePage(context.Background(), callToolRequest("update_page", map[string]any{
		"page_id": "100",
		"content": "<p>updated</p>",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	version := updateBody["version"].(map[string]any)
	assert.Equal(t, float64(4), version["number"])

	var response map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, float64(4), response["version"])
}

func TestGetPage(t *testing.T) {
	confluenceHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/content/100", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"100","type":"page","title":"Notes",
			"version":{"number":4},
			"space":{"key":"SPACE"},
			"body":{"storage":{"value":"<p>hello</p>","representation":"storage"}}
		}`))
	})

	srv := newTestServer(t, confluenceHandler, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Jira should not be called")
	}))

	result, err := srv.handleGetPage(context.Background(), callToolRequest("get_page", map[string]any{
		"page_id": "100",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "Notes", response["title"])
	assert.Equal(t, "<p>hello</p>", response["content"])
	assert.Equal(t, "SPACE", response["space_key"])
	assert.Contains(t, response["page_url"], "/spaces/SPACE/pages/100")
}
