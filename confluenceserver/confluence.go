// Package confluenceserver exposes Confluence page management and Jira
// status reporting as MCP tools over streamable HTTP.
package confluenceserver

import (
	"fmt"
	"html"
	"strings"

	goconfluence "github.com/virtomize/confluence-go-api"
	"github.com/pkg/errors"

	"atlasassist/config"
)

func newConfluenceAPI(cfg config.ConfluenceConfig) (*goconfluence.API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	api, err := goconfluence.NewAPI(strings.TrimSuffix(cfg.URL, "/")+"/rest/api", cfg.Username, cfg.APIToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Confluence client")
	}

	return api, nil
}

// pageURL builds the human-facing link for a page, as opposed to the REST
// resource URL the API returns.
func pageURL(baseURL, spaceKey, pageID string) string {
	return fmt.Sprintf("%s/spaces/%s/pages/%s", strings.TrimSuffix(baseURL, "/"), spaceKey, pageID)
}

// reportHTML renders a Jira project status report as a Confluence storage
// format table.
func reportHTML(jiraURL, projectKey string, issues []issueSummary) string {
	var b strings.Builder
	b.WriteString("<h2>JIRA Project Status Report: " + html.EscapeString(projectKey) + "</h2>")
	b.WriteString("<table border='1' cellpadding='5' cellspacing='0' style='width: 100%; border-collapse: collapse;'>")
	b.WriteString("<thead><tr><th>Issue Key</th><th>Summary</th><th>Status</th><th>Assignee</th></tr></thead>")
	b.WriteString("<tbody>")

	jiraURL = strings.TrimSuffix(jiraURL, "/")
	for _, issue := range issues {
		b.WriteString("<tr>")
		fmt.Fprintf(&b, "<td><a href='%s/browse/%s'>%s</a></td>", jiraURL, issue.Key, html.EscapeString(issue.Key))
		fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(issue.Summary))
		fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(issue.Status))
		fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(issue.Assignee))
		b.WriteString("</tr>")
	}

	b.WriteString("</tbody></table>")
	return b.String()
}
