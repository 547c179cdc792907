package confluenceserver

import (
	"context"
	"fmt"

	"github.com/andygrunwald/go-jira"
	"github.com/pkg/errors"

	"atlasassist/config"
)

type issueSummary struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
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

// fetchProjectIssues pulls the most recently created issues for a Jira
// project, for inclusion in a report. Not exposed as a tool.
func fetchProjectIssues(ctx context.Context, client *jira.Client, projectKey string, maxIssues int) ([]issueSummary, error) {
	jql := fmt.Sprintf("project = %q ORDER BY created DESC", projectKey)
	issues, resp, err := client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxIssues,
		Fields:     []string{"summary", "status", "assignee"},
	})
	if err != nil {
		return nil, errors.Wrap(jira.NewJiraError(resp, err), "failed to get JIRA status")
	}

	summaries := make([]issueSummary, 0, len(issues))
	for i := range issues {
		issue := &issues[i]
		summary := issueSummary{
			Key:      issue.Key,
			Assignee: "Unassigned",
			Status:   "Unknown",
		}
		if issue.Fields != nil {
			summary.Summary = issue.Fields.Summary
			if issue.Fields.Status != nil {
				summary.Status = issue.Fields.Status.Name
			}
			if issue.Fields.Assignee != nil {
				summary.Assignee = issue.Fields.Assignee.DisplayName
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}
