package jiraserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"atlasassist/config"
	"atlasassist/logging"
)

const (
	serverName    = "jira_server"
	serverVersion = "1.0.0"

	// DefaultIssueType is used when create_ticket is called without an
	// explicit issue type.
	DefaultIssueType = "Story"

	// maxProjectIssues caps how many issues get_project_status aggregates.
	maxProjectIssues = 100
)

// Server wraps a Jira REST client in an MCP server served over
// streamable HTTP.
type Server struct {
	client     *jira.Client
	baseURL    string
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	log        logging.Logger
}

// New validates the Jira configuration, connects the REST client, and
// registers the ticket tools.
func New(cfg config.JiraConfig, log logging.Logger) (*Server, error) {
	client, err := newJiraClient(cfg)
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		client:    client,
		baseURL:   cfg.URL,
		mcpServer: mcpServer,
		log:       log,
	}
	s.registerTools()
	s.httpServer = server.NewStreamableHTTPServer(mcpServer)

	return s, nil
}

// Start serves the MCP endpoint at http://<addr>/mcp and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.log.Info("Jira MCP server listening", "addr", addr)
	if err := s.httpServer.Start(addr); err != nil {
		return errors.Wrap(err, "Jira MCP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Jira MCP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerTools() {
	createTool := mcp.NewTool("create_ticket",
		mcp.WithDescription("Creates a new JIRA issue."),
		mcp.WithString("project_key",
			mcp.Required(),
			mcp.Description("The project key (e.g., 'TEST')."),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("The summary/title of the new ticket."),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("A detailed description for the ticket."),
		),
		mcp.WithString("issue_type",
			mcp.Description("The type of issue to create (e.g., 'Story', 'Task', 'Bug', 'Epic'). Defaults to 'Story'."),
		),
	)
	s.mcpServer.AddTool(createTool, s.handleCreateTicket)

	statusTool := mcp.NewTool("get_ticket_status",
		mcp.WithDescription("Get the current status of a JIRA ticket."),
		mcp.WithString("issue_key",
			mcp.Required(),
			mcp.Description("JIRA issue key (e.g., DEMO-101)."),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleGetTicketStatus)

	projectTool := mcp.NewTool("get_project_status",
		mcp.WithDescription("Returns a summary of the project's status, including issue counts by type and status."),
		mcp.WithString("project_key",
			mcp.Required(),
			mcp.Description("The project key (e.g., 'TEST')."),
		),
	)
	s.mcpServer.AddTool(projectTool, s.handleGetProjectStatus)

	deleteTool := mcp.NewTool("delete_ticket",
		mcp.WithDescription("Delete a specific JIRA ticket. This action is irreversible."),
		mcp.WithString("issue_key",
			mcp.Required(),
			mcp.Description("The key of the ticket to delete (e.g., DEMO-101)."),
		),
	)
	s.mcpServer.AddTool(deleteTool, s.handleDeleteTicket)
}

func toolResultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleCreateTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectKey, err := request.RequireString("project_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := request.RequireString("summary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issueType := request.GetString("issue_type", DefaultIssueType)

	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: projectKey},
			Summary:     summary,
			Description: description,
			Type:        jira.IssueType{Name: issueType},
		},
	}

	created, resp, err := s.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		err = jira.NewJiraError(resp, err)
		message := fmt.Sprintf("JIRA API Error: %v", err)
		if strings.Contains(err.Error(), "The issue type selected is not valid") {
			message += ". This could be because the issue type is not available in the specified project."
		}
		s.log.Error("Failed to create ticket", "project", projectKey, "error", err)
		return mcp.NewToolResultError(message), nil
	}

	s.log.Info("Created ticket", "key", created.Key, "project", projectKey, "type", issueType)

	return toolResultJSON(map[string]string{
		"key": created.Key,
		"url": browseURL(s.baseURL, created.Key),
	})
}

func (s *Server) handleGetTicketStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, err := request.RequireString("issue_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := checkIssueKey(issueKey); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issue, resp, err := s.client.Issue.GetWithContext(ctx, issueKey, nil)
	if err != nil {
		err = jira.NewJiraError(resp, err)
		s.log.Error("Failed to retrieve ticket", "key", issueKey, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to retrieve ticket %s: %v", issueKey, err)), nil
	}

	summary := summarizeIssue(issue)
	return toolResultJSON(map[string]string{
		"key":     summary.Key,
		"summary": summary.Summary,
		"status":  summary.Status,
	})
}

func (s *Server) handleGetProjectStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectKey, err := request.RequireString("project_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, err := fetchProjectStatus(ctx, s.client, projectKey, maxProjectIssues)
	if err != nil {
		s.log.Error("Failed to retrieve project status", "project", projectKey, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	if status.TotalIssues == 0 {
		return toolResultJSON(map[string]string{
			"message": fmt.Sprintf("No issues found for project '%s'.", projectKey),
		})
	}

	return toolResultJSON(status)
}

func (s *Server) handleDeleteTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, err := request.RequireString("issue_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := checkIssueKey(issueKey); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.client.Issue.DeleteWithContext(ctx, issueKey)
	if err != nil {
		err = jira.NewJiraError(resp, err)
		s.log.Error("Failed to delete ticket", "key", issueKey, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete ticket %s: %v", issueKey, err)), nil
	}

	s.log.Info("Deleted ticket", "key", issueKey)

	return toolResultJSON(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Ticket %s has been deleted.", issueKey),
	})
}
