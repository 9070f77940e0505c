package pipeline

import "github.com/Fasthei/charmine/extract"

// Role pairs a participant name with its system instructions.
type Role struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// Roster names the participants of a discovery conversation. The
// coordinator never calls the model; it relays the task and receives the
// final summary.
type Roster struct {
	Coordinator Role `json:"coordinator"`
	Analyst     Role `json:"analyst"`
	Specialist  Role `json:"specialist"`
	Visualizer  Role `json:"visualizer"`
	Summarizer  Role `json:"summarizer"`
}

// DefaultRoster returns the standard five-role cast.
func DefaultRoster() Roster {
	return Roster{
		Coordinator: Role{
			Name:         "Coordinator",
			Instructions: "You coordinate the discussion on behalf of the user. Relay the task, keep the specialists on topic, and accept the final summary.",
		},
		Analyst: Role{
			Name: "RelationshipAnalyst",
			Instructions: "You are a relationship analyst. Examine the entity descriptions and the conversation so far to uncover relationships between the named entities. " +
				"For each relationship you find, state it on its own line as '<entity name> relation: <description>'. Be concrete and only report relationships supported by the text.",
		},
		Specialist: Role{
			Name: "EntitySpecialist",
			Instructions: "You are an entity specialist. Enrich the discussion with relevant background on the named entities and their attributes, " +
				"and point out attribute overlaps that could indicate a connection.",
		},
		Visualizer: Role{
			Name: "GraphVisualizer",
			Instructions: "You advise on how to visualize the discovered relationship graph. When you have a concrete recommendation, " +
				"state it on a line starting with 'Visualization suggestion:'. Keep it brief.",
		},
		Summarizer: Role{
			Name: "Summarizer",
			Instructions: "You summarize the relationships the group has discovered into a short, plain-language paragraph. " +
				"When the discussion has nothing further to add, end your reply with TERMINATE.",
		},
	}
}

// GroupOrder returns the round-robin speaking order for the group stage.
func (r Roster) GroupOrder() []Role {
	return []Role{r.Specialist, r.Visualizer, r.Analyst, r.Summarizer}
}

// DialogueRoles maps the roster onto the role names the dialogue parser
// scans for.
func (r Roster) DialogueRoles() extract.DialogueRoles {
	return extract.DialogueRoles{
		Analyst:     r.Analyst.Name,
		Advisor:     r.Visualizer.Name,
		Summarizer:  r.Summarizer.Name,
		Coordinator: r.Coordinator.Name,
	}
}
