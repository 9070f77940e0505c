package extract

import (
	"strings"

	"github.com/Fasthei/charmine/core"
)

// DialogueRoles names the pipeline participants the parser keys on.
type DialogueRoles struct {
	Analyst     string
	Advisor     string
	Summarizer  string
	Coordinator string
}

// DialogueResult is the structured output recovered from a free-form
// agent dialogue.
type DialogueResult struct {
	Relationships []core.Relationship
	Summary       string
	Visualization *core.Visualization
}

// ParseDialogue heuristically structures a message log:
//
//   - Analyst messages containing "relation": for each known entity name
//     present in the content, every line containing both the name and
//     "relation" is split on its first colon and the trailing segment,
//     trimmed, becomes a relationship description for that name.
//   - Advisor messages containing "suggestion" or "visualization"
//     overwrite the visualization field (last write wins).
//   - The last summarizer-to-coordinator message becomes the summary;
//     callers fall back to the raw stage-3 reply when none was captured.
func ParseDialogue(messages []core.Message, entityNames []string, roles DialogueRoles) DialogueResult {
	var res DialogueResult

	for _, msg := range messages {
		switch msg.Sender {
		case roles.Analyst:
			if strings.Contains(msg.Content, "relation") {
				res.Relationships = append(res.Relationships, relationLines(msg.Content, entityNames)...)
			}

		case roles.Advisor:
			if strings.Contains(msg.Content, "suggestion") || strings.Contains(msg.Content, "visualization") {
				res.Visualization = &core.Visualization{Suggestion: msg.Content}
			}

		case roles.Summarizer:
			if msg.Recipient == roles.Coordinator {
				res.Summary = msg.Content
			}
		}
	}

	return res
}

func relationLines(content string, entityNames []string) []core.Relationship {
	var rels []core.Relationship

	for _, name := range entityNames {
		if name == "" || !strings.Contains(content, name) {
			continue
		}

		for _, line := range strings.Split(content, "\n") {
			if !strings.Contains(line, name) || !strings.Contains(line, "relation") {
				continue
			}

			if _, desc, ok := strings.Cut(line, ":"); ok {
				rels = append(rels, core.Relationship{
					Source:      name,
					Description: strings.TrimSpace(desc),
				})
			}
		}
	}

	return rels
}
