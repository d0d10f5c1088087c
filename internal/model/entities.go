package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the dashboard collections
type Kind string

const (
	KindTicket        Kind = "tickets"
	KindThreat        Kind = "threats"
	KindVulnerability Kind = "vulnerabilities"
	KindArtifact      Kind = "artifacts"
	KindMember        Kind = "members"
)

// ErrUnknownKind is returned when a collection name cannot be resolved
var ErrUnknownKind = errors.New("unknown collection kind")

// Kinds lists every collection in display order
var Kinds = []Kind{KindArtifact, KindVulnerability, KindThreat, KindTicket, KindMember}

// ParseKind resolves singular, plural and mixed-case collection names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ticket", "tickets":
		return KindTicket, nil
	case "threat", "threats":
		return KindThreat, nil
	case "vulnerability", "vulnerabilities", "vuln", "vulns":
		return KindVulnerability, nil
	case "artifact", "artifacts":
		return KindArtifact, nil
	case "member", "members":
		return KindMember, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Ticket status values
const (
	StatusNotAccepted = "Not accepted"
	StatusProcessing  = "Processing"
	StatusSubmitted   = "Submitted"
	StatusResolved    = "Resolved"
)

// TicketStatuses is the closed status enumeration in workflow order
var TicketStatuses = []string{StatusNotAccepted, StatusProcessing, StatusSubmitted, StatusResolved}

// Priorities and severities share one ladder
var (
	Priorities = []string{"Low", "Medium", "High", "Critical"}
	Severities = []string{"Low", "Medium", "High", "Critical"}
)

// Remediation workflow stages. Read-only: stages arrive from the API.
const (
	StageDetection      = "Detection"
	StageClassification = "Classification"
	StageAssignment     = "Assignment"
	StageRemediation    = "Remediation"
	StageVerification   = "Verification"
)

var WorkflowStages = []string{StageDetection, StageClassification, StageAssignment, StageRemediation, StageVerification}

// STRIDE threat categories
var StrideTypes = []string{
	"Spoofing",
	"Tampering",
	"Repudiation",
	"Information Disclosure",
	"Denial of Service",
	"Elevation of Privilege",
}

var MitigationStatuses = []string{"Not mitigated", "Partially mitigated", "Mitigated"}

var VulnerabilityStatuses = []string{"Open", "In progress", "Fixed", "Won't fix"}

var ArtifactTypes = []string{"Web application", "API", "Mobile application", "Desktop application", "Infrastructure", "Library"}

var MemberRoles = []string{"Project Manager", "Security Expert", "Member"}

// Ticket is a remediation ticket
type Ticket struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	Priority    string    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Stage       string    `json:"stage,omitempty" yaml:"stage,omitempty"`
	Assignee    string    `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	ThreatID    string    `json:"threatId,omitempty" yaml:"threatId,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// DreadScore holds the five DREAD components, each 0-5.
type DreadScore struct {
	Damage          float64 `json:"damage" yaml:"damage"`
	Reproducibility float64 `json:"reproducibility" yaml:"reproducibility"`
	Exploitability  float64 `json:"exploitability" yaml:"exploitability"`
	AffectedUsers   float64 `json:"affectedUsers" yaml:"affectedUsers"`
	Discoverability float64 `json:"discoverability" yaml:"discoverability"`
}

// Total sums the components
func (d DreadScore) Total() float64 {
	return d.Damage + d.Reproducibility + d.Exploitability + d.AffectedUsers + d.Discoverability
}

// Average is Total over the five components
func (d DreadScore) Average() float64 {
	return d.Total() / 5
}

// Threat is a modelled threat against an artifact
type Threat struct {
	ID               string      `json:"id" yaml:"id"`
	Name             string      `json:"name" yaml:"name"`
	Description      string      `json:"description,omitempty" yaml:"description,omitempty"`
	Type             string      `json:"type" yaml:"type"`
	Severity         string      `json:"severity,omitempty" yaml:"severity,omitempty"`
	MitigationStatus string      `json:"mitigationStatus,omitempty" yaml:"mitigationStatus,omitempty"`
	RiskScore        float64     `json:"riskScore,omitempty" yaml:"riskScore,omitempty"`
	Dread            *DreadScore `json:"dread,omitempty" yaml:"dread,omitempty"`
	CreatedAt        time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt" yaml:"updatedAt"`
}

// Risk returns RiskScore, falling back to the DREAD average when no score was assigned.
func (t Threat) Risk() float64 {
	if t.RiskScore != 0 || t.Dread == nil {
		return t.RiskScore
	}
	return t.Dread.Average()
}

// Vulnerability is a weakness found in an artifact
type Vulnerability struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CveID       string    `json:"cveId,omitempty" yaml:"cveId,omitempty"`
	Cwes        []string  `json:"cwes,omitempty" yaml:"cwes,omitempty"`
	Severity    string    `json:"severity,omitempty" yaml:"severity,omitempty"`
	Status      string    `json:"status,omitempty" yaml:"status,omitempty"`
	Score       float64   `json:"score,omitempty" yaml:"score,omitempty"`
	ThreatIDs   []string  `json:"threatIds,omitempty" yaml:"threatIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Artifact is an asset under assessment
type Artifact struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`
	URL         string    `json:"url,omitempty" yaml:"url,omitempty"`
	ThreatIDs   []string  `json:"threatIds,omitempty" yaml:"threatIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Member is a project member
type Member struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email,omitempty" yaml:"email,omitempty"`
	Role      string    `json:"role,omitempty" yaml:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// ThreatRefs collects referenced threat ids in first-seen order, skipping blanks and repeats.
func ThreatRefs(vulns []Vulnerability, artifacts []Artifact) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, v := range vulns {
		add(v.ThreatIDs)
	}
	for _, a := range artifacts {
		add(a.ThreatIDs)
	}
	return out
}
