// Package jiraserver exposes Jira project management operations as MCP
// tools over streamable HTTP.
package jiraserver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/pkg/errors"

	"atlasassist/config"
)

var validIssueKey = regexp.MustCompile(`^([[:alnum:]]+)-([[:digit:]]+)$`)

var searchFields = []string{
	"summary",
	"status",
	"assignee",
	"issuetype",
}

func newJiraClient(cfg config.JiraConfig) (*jira.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.APIToken,
	}
	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Jira client")
	}

	return client, nil
}

// checkIssueKey rejects keys that are over-length or don't look like an issue key.
func checkIssueKey(issueKey string) error {
	if len(issueKey) > 50 || !validIssueKey.MatchString(issueKey) {
		return errors.Errorf("invalid issue key: %s", issueKey)
	}
	return nil
}

type issueSummary struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
}

type projectStatus struct {
	ProjectKey   string         `json:"project_key"`
	TotalIssues  int            `json:"total_issues"`
	StatusCounts map[string]int `json:"status_counts"`
	TypeCounts   map[string]int `json:"type_counts"`
	Issues       []issueSummary `json:"issues"`
}

func summarizeIssue(issue *jira.Issue) issueSummary {
	summary := issueSummary{
		Key:      issue.Key,
		Assignee: "Unassigned",
		Status:   "Unknown",
	}
	if issue.Fields == nil {
		return summary
	}

	summary.Summary = issue.Fields.Summary
	if issue.Fields.Status != nil {
		summary.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		summary.Assignee = issue.Fields.Assignee.DisplayName
	}

	return summary
}

// fetchProjectStatus pulls the most recently created issues for a project
// and aggregates them by status and issue type.
func fetchProjectStatus(ctx context.Context, client *jira.Client, projectKey string, maxIssues int) (*projectStatus, error) {
	jql := fmt.Sprintf("project = %q ORDER BY created DESC", projectKey)
	issues, resp, err := client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxIssues,
		Fields:     searchFields,
	})
	if err != nil {
		err = jira.NewJiraError(resp, err)
		if strings.Contains(err.Error(), "does not exist") {
			return nil, errors.Errorf("JIRA API Error: The project with key '%s' does not exist or you do not have permission to view it.", projectKey)
		}
		return nil, errors.Wrapf(err, "JIRA API Error fetching project status for '%s'", projectKey)
	}

	status := &projectStatus{
		ProjectKey:   projectKey,
		TotalIssues:  len(issues),
		StatusCounts: map[string]int{},
		TypeCounts:   map[string]int{},
		Issues:       make([]issueSummary, 0, len(issues)),
	}
	for i := range issues {
		summary := summarizeIssue(&issues[i])
		status.StatusCounts[summary.Status]++
		if issues[i].Fields != nil {
			status.TypeCounts[issues[i].Fields.Type.Name]++
		}
		status.Issues = append(status.Issues, summary)
	}

	return status, nil
}

func browseURL(baseURL, issueKey string) string {
	return strings.TrimSuffix(baseURL, "/") + "/browse/" + issueKey
}
