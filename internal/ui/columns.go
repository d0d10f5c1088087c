package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// Column renders one table column
type Column[T any] struct {
	Title string
	Value func(T) string
	// Level colors the cell by Critical/High/Medium/Low.
	Level bool
	// Expand is the tview expansion weight; 0 keeps the column tight.
	Expand int
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func score(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

func TicketColumns() []Column[model.Ticket] {
	return []Column[model.Ticket]{
		{Title: "ID", Value: func(t model.Ticket) string { return t.ID }},
		{Title: "Title", Value: func(t model.Ticket) string { return t.Title }, Expand: 1},
		{Title: "Status", Value: func(t model.Ticket) string { return t.Status }},
		{Title: "Priority", Value: func(t model.Ticket) string { return t.Priority }, Level: true},
		{Title: "Stage", Value: func(t model.Ticket) string { return t.Stage }},
		{Title: "Assignee", Value: func(t model.Ticket) string { return t.Assignee }},
		{Title: "Updated", Value: func(t model.Ticket) string { return shortTime(t.UpdatedAt) }},
	}
}

func ThreatColumns() []Column[model.Threat] {
	return []Column[model.Threat]{
		{Title: "ID", Value: func(t model.Threat) string { return t.ID }},
		{Title: "Name", Value: func(t model.Threat) string { return t.Name }, Expand: 1},
		{Title: "Type", Value: func(t model.Threat) string { return t.Type }},
		{Title: "Severity", Value: func(t model.Threat) string { return t.Severity }, Level: true},
		{Title: "Mitigation", Value: func(t model.Threat) string { return t.MitigationStatus }},
		{Title: "Risk", Value: func(t model.Threat) string { return score(t.Risk()) }},
	}
}

func VulnerabilityColumns() []Column[model.Vulnerability] {
	return []Column[model.Vulnerability]{
		{Title: "ID", Value: func(v model.Vulnerability) string { return v.ID }},
		{Title: "Title", Value: func(v model.Vulnerability) string { return v.Title }, Expand: 1},
		{Title: "CVE", Value: func(v model.Vulnerability) string { return v.CveID }},
		{Title: "Severity", Value: func(v model.Vulnerability) string { return v.Severity }, Level: true},
		{Title: "Status", Value: func(v model.Vulnerability) string { return v.Status }},
		{Title: "Score", Value: func(v model.Vulnerability) string { return score(v.Score) }},
		{Title: "Threats", Value: func(v model.Vulnerability) string { return fmt.Sprint(len(v.ThreatIDs)) }},
	}
}

func ArtifactColumns() []Column[model.Artifact] {
	return []Column[model.Artifact]{
		{Title: "ID", Value: func(a model.Artifact) string { return a.ID }},
		{Title: "Name", Value: func(a model.Artifact) string { return a.Name }, Expand: 1},
		{Title: "Type", Value: func(a model.Artifact) string { return a.Type }},
		{Title: "URL", Value: func(a model.Artifact) string { return a.URL }},
		{Title: "Threats", Value: func(a model.Artifact) string { return fmt.Sprint(len(a.ThreatIDs)) }},
	}
}

func MemberColumns() []Column[model.Member] {
	return []Column[model.Member]{
		{Title: "ID", Value: func(m model.Member) string { return m.ID }},
		{Title: "Name", Value: func(m model.Member) string { return m.Name }, Expand: 1},
		{Title: "Email", Value: func(m model.Member) string { return m.Email }},
		{Title: "Role", Value: func(m model.Member) string { return m.Role }},
	}
}

// ThreatLookup resolves a threat id to a display name; ok is false while unresolved.
type ThreatLookup func(id string) (name string, ok bool)

func threatLines(ids []string, lookup ThreatLookup) string {
	if len(ids) == 0 {
		return "  (none)\n"
	}
	var b strings.Builder
	for _, id := range ids {
		name := "..."
		if lookup != nil {
			if n, ok := lookup(id); ok {
				name = n
			}
		}
		fmt.Fprintf(&b, "  %s  %s\n", id, name)
	}
	return b.String()
}

func TicketDetail(t model.Ticket) string {
	return fmt.Sprintf("%s  %s\n\nStatus: %s\nPriority: %s\nStage: %s\nAssignee: %s\nThreat: %s\nCreated: %s\nUpdated: %s\n\n%s",
		t.ID, t.Title, t.Status, t.Priority, t.Stage, t.Assignee, t.ThreatID,
		shortTime(t.CreatedAt), shortTime(t.UpdatedAt), t.Description)
}

func ThreatDetail(t model.Threat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\nType: %s\nSeverity: %s\nMitigation: %s\nRisk: %s\n",
		t.ID, t.Name, t.Type, t.Severity, t.MitigationStatus, score(t.Risk()))
	if d := t.Dread; d != nil {
		fmt.Fprintf(&b, "DREAD: D%.0f R%.0f E%.0f A%.0f D%.0f (avg %.1f)\n",
			d.Damage, d.Reproducibility, d.Exploitability, d.AffectedUsers, d.Discoverability, d.Average())
	}
	b.WriteString("\n" + t.Description)
	return b.String()
}

// VulnerabilityDetail renders a vulnerability with its referenced threats
// resolved through lookup.
func VulnerabilityDetail(lookup ThreatLookup) func(model.Vulnerability) string {
	return func(v model.Vulnerability) string {
		return fmt.Sprintf("%s  %s\n\nCVE: %s\nCWE: %s\nSeverity: %s\nStatus: %s\nScore: %s\n\nThreats:\n%s\n%s",
			v.ID, v.Title, v.CveID, strings.Join(v.Cwes, ", "), v.Severity, v.Status, score(v.Score),
			threatLines(v.ThreatIDs, lookup), v.Description)
	}
}

func ArtifactDetail(lookup ThreatLookup) func(model.Artifact) string {
	return func(a model.Artifact) string {
		return fmt.Sprintf("%s  %s\n\nType: %s\nURL: %s\n\nThreats:\n%s\n%s",
			a.ID, a.Name, a.Type, a.URL, threatLines(a.ThreatIDs, lookup), a.Description)
	}
}

func MemberDetail(m model.Member) string {
	return fmt.Sprintf("%s  %s\n\nEmail: %s\nRole: %s\nJoined: %s",
		m.ID, m.Name, m.Email, m.Role, shortTime(m.CreatedAt))
}
