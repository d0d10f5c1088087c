package view

import (
	"strings"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// TicketProfile configures ticket lists: search on title/description/assignee,
// filters on status, priority and workflow stage.
func TicketProfile() *Profile[model.Ticket] {
	status := func(t model.Ticket) string { return t.Status }
	priority := func(t model.Ticket) string { return t.Priority }
	stage := func(t model.Ticket) string { return t.Stage }
	return &Profile[model.Ticket]{
		Name: string(model.KindTicket),
		ID:   func(t model.Ticket) string { return t.ID },
		SearchFields: []func(model.Ticket) string{
			func(t model.Ticket) string { return t.ID },
			func(t model.Ticket) string { return t.Title },
			func(t model.Ticket) string { return t.Description },
			func(t model.Ticket) string { return t.Assignee },
		},
		Categories: map[CategoryField]Category[model.Ticket]{
			FieldStatus:   {Get: status, Known: model.TicketStatuses},
			FieldPriority: {Get: priority, Known: model.Priorities},
			FieldStage:    {Get: stage, Known: model.WorkflowStages},
		},
		Sorts: map[SortKey]SortPolicy[model.Ticket]{
			SortName:     TextPolicy(func(t model.Ticket) string { return t.Title }),
			SortPriority: NumericPolicy(func(t model.Ticket) float64 { return rank(t.Priority, model.Priorities) }),
			SortUpdated:  NumericPolicy(func(t model.Ticket) float64 { return float64(t.UpdatedAt.Unix()) }),
		},
		Summary:   AggregationProfile{Name: "ticket-summary", Fields: []CategoryField{FieldStatus, FieldPriority, FieldStage}},
		Breakdown: AggregationProfile{Name: "ticket-breakdown", Fields: []CategoryField{FieldStatus, FieldPriority}},
	}
}

// ThreatProfile configures threat lists. The summary counts mitigation status,
// the breakdown does not.
func ThreatProfile() *Profile[model.Threat] {
	typ := func(t model.Threat) string { return t.Type }
	severity := func(t model.Threat) string { return t.Severity }
	mitigation := func(t model.Threat) string { return t.MitigationStatus }
	return &Profile[model.Threat]{
		Name: string(model.KindThreat),
		ID:   func(t model.Threat) string { return t.ID },
		SearchFields: []func(model.Threat) string{
			func(t model.Threat) string { return t.Name },
			func(t model.Threat) string { return t.Description },
			typ,
		},
		Categories: map[CategoryField]Category[model.Threat]{
			FieldType:       {Get: typ, Known: model.StrideTypes},
			FieldSeverity:   {Get: severity, Known: model.Severities},
			FieldMitigation: {Get: mitigation, Known: model.MitigationStatuses},
		},
		Sorts: map[SortKey]SortPolicy[model.Threat]{
			SortName:     TextPolicy(func(t model.Threat) string { return t.Name }),
			SortType:     TextPolicy(typ),
			SortRisk:     NumericPolicy(func(t model.Threat) float64 { return t.Risk() }),
			SortSeverity: NumericPolicy(func(t model.Threat) float64 { return rank(t.Severity, model.Severities) }),
		},
		Summary:   AggregationProfile{Name: "threat-summary", Fields: []CategoryField{FieldType, FieldSeverity, FieldMitigation}},
		Breakdown: AggregationProfile{Name: "threat-breakdown", Fields: []CategoryField{FieldType, FieldSeverity}},
	}
}

// VulnerabilityProfile configures vulnerability lists; search covers CVE and CWE ids.
func VulnerabilityProfile() *Profile[model.Vulnerability] {
	severity := func(v model.Vulnerability) string { return v.Severity }
	status := func(v model.Vulnerability) string { return v.Status }
	return &Profile[model.Vulnerability]{
		Name: string(model.KindVulnerability),
		ID:   func(v model.Vulnerability) string { return v.ID },
		SearchFields: []func(model.Vulnerability) string{
			func(v model.Vulnerability) string { return v.Title },
			func(v model.Vulnerability) string { return v.Description },
			func(v model.Vulnerability) string { return v.CveID },
			func(v model.Vulnerability) string { return strings.Join(v.Cwes, " ") },
		},
		Categories: map[CategoryField]Category[model.Vulnerability]{
			FieldSeverity: {Get: severity, Known: model.Severities},
			FieldStatus:   {Get: status, Known: model.VulnerabilityStatuses},
		},
		Sorts: map[SortKey]SortPolicy[model.Vulnerability]{
			SortName:     TextPolicy(func(v model.Vulnerability) string { return v.Title }),
			SortRisk:     NumericPolicy(func(v model.Vulnerability) float64 { return v.Score }),
			SortSeverity: NumericPolicy(func(v model.Vulnerability) float64 { return rank(v.Severity, model.Severities) }),
		},
		Summary:   AggregationProfile{Name: "vulnerability-summary", Fields: []CategoryField{FieldSeverity, FieldStatus}},
		Breakdown: AggregationProfile{Name: "vulnerability-breakdown", Fields: []CategoryField{FieldSeverity}},
	}
}

// ArtifactProfile configures artifact lists; search covers name, description, URL and type.
func ArtifactProfile() *Profile[model.Artifact] {
	typ := func(a model.Artifact) string { return a.Type }
	return &Profile[model.Artifact]{
		Name: string(model.KindArtifact),
		ID:   func(a model.Artifact) string { return a.ID },
		SearchFields: []func(model.Artifact) string{
			func(a model.Artifact) string { return a.Name },
			func(a model.Artifact) string { return a.Description },
			func(a model.Artifact) string { return a.URL },
			typ,
		},
		Categories: map[CategoryField]Category[model.Artifact]{
			FieldType: {Get: typ, Known: model.ArtifactTypes},
		},
		Sorts: map[SortKey]SortPolicy[model.Artifact]{
			SortName: TextPolicy(func(a model.Artifact) string { return a.Name }),
			SortType: TextPolicy(typ),
		},
		Summary:   AggregationProfile{Name: "artifact-summary", Fields: []CategoryField{FieldType}},
		Breakdown: AggregationProfile{Name: "artifact-breakdown", Fields: []CategoryField{FieldType}},
	}
}

// MemberProfile configures member lists; search covers name, email and role.
func MemberProfile() *Profile[model.Member] {
	role := func(m model.Member) string { return m.Role }
	return &Profile[model.Member]{
		Name: string(model.KindMember),
		ID:   func(m model.Member) string { return m.ID },
		SearchFields: []func(model.Member) string{
			func(m model.Member) string { return m.Name },
			func(m model.Member) string { return m.Email },
			role,
		},
		Categories: map[CategoryField]Category[model.Member]{
			FieldRole: {Get: role, Known: model.MemberRoles},
		},
		Sorts: map[SortKey]SortPolicy[model.Member]{
			SortName: TextPolicy(func(m model.Member) string { return m.Name }),
			SortType: TextPolicy(role),
		},
		Summary:   AggregationProfile{Name: "member-summary", Fields: []CategoryField{FieldRole}},
		Breakdown: AggregationProfile{Name: "member-breakdown", Fields: []CategoryField{FieldRole}},
	}
}
