package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/secboard/internal/bus"
	"github.com/Ashfaaq98/secboard/internal/model"
)

var (
	seedCount int
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed sample collections into the snapshot store",
	Long: `Seed writes sample tickets, threats, vulnerabilities, artifacts and members
into the snapshot store. This is useful for trying list, summary and browse
without a dashboard API. Collections that already have a snapshot are left
alone unless --force is given.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVar(&seedCount, "count", 24, "Items per collection")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "Overwrite existing snapshots")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := log.New(cmd.OutOrStdout(), "[seed] ", log.LstdFlags)
	logger.Println("Seeding sample data...")

	rt := newRuntime(cmd)
	defer rt.Close()
	store, err := rt.snapshotStore()
	if err != nil {
		return err
	}

	info, err := store.Info(ctx)
	if err != nil {
		return err
	}
	existing := make(map[model.Kind]int, len(info))
	for _, c := range info {
		existing[c.Kind] = c.Count
	}

	data := sampleData(seedCount, time.Now())
	for _, kind := range model.Kinds {
		if n, ok := existing[kind]; ok && !seedForce {
			logger.Printf("%s already has a snapshot (%d items), skipping", kind, n)
			continue
		}
		if err := store.Save(ctx, kind, data[kind], "seed"); err != nil {
			return fmt.Errorf("failed to seed %s: %w", kind, err)
		}
		rt.publish(ctx, kind, bus.ActionSaved, seedCount, "seed")
		logger.Printf("Seeded %s", kind)
	}

	logger.Println("Seeding completed")
	return nil
}

// sampleData builds n items per collection. Vulnerabilities and artifacts
// reference the generated threats, plus one dangling id each to show failed
// resolution.
func sampleData(n int, now time.Time) map[model.Kind]any {
	if n <= 0 {
		n = 1
	}
	members := make([]model.Member, n)
	threats := make([]model.Threat, n)
	vulns := make([]model.Vulnerability, n)
	artifacts := make([]model.Artifact, n)
	tickets := make([]model.Ticket, n)

	firstNames := []string{"Alex", "Sam", "Robin", "Kim", "Jordan", "Noa", "Taylor", "Rene"}
	threatNames := []string{"Session token replay", "Tampered audit trail", "Unsigned build artifact",
		"Verbose error disclosure", "Login brute force", "Privilege escalation via admin API"}
	vulnTitles := []string{"Reflected XSS in search", "SQL injection in report filter", "Outdated OpenSSL",
		"Missing CSRF token", "Open redirect after login", "Weak password policy"}
	artifactNames := []string{"Customer portal", "Payments API", "Mobile banking app", "Admin console",
		"Kubernetes cluster", "Auth library"}
	ticketTitles := []string{"Patch", "Rotate credentials for", "Add monitoring to", "Review access to",
		"Harden", "Write runbook for"}

	for i := 0; i < n; i++ {
		at := now.Add(-time.Duration(n-i) * time.Hour)
		threatID := fmt.Sprintf("th-%03d", i+1)

		members[i] = model.Member{
			ID:        fmt.Sprintf("m-%03d", i+1),
			Name:      fmt.Sprintf("%s %c.", firstNames[i%len(firstNames)], 'A'+rune(i%26)),
			Email:     fmt.Sprintf("member%d@example.com", i+1),
			Role:      model.MemberRoles[i%len(model.MemberRoles)],
			CreatedAt: at,
			UpdatedAt: at,
		}

		threats[i] = model.Threat{
			ID:               threatID,
			Name:             fmt.Sprintf("%s #%d", threatNames[i%len(threatNames)], i+1),
			Description:      "Generated sample threat.",
			Type:             model.StrideTypes[i%len(model.StrideTypes)],
			Severity:         model.Severities[(i*3)%len(model.Severities)],
			MitigationStatus: model.MitigationStatuses[i%len(model.MitigationStatuses)],
			Dread: &model.DreadScore{
				Damage:          float64(i%5 + 1),
				Reproducibility: float64((i+2)%5 + 1),
				Exploitability:  float64((i+3)%5 + 1),
				AffectedUsers:   float64((i + 4) % 5),
				Discoverability: float64((i+1)%5 + 1),
			},
			CreatedAt: at,
			UpdatedAt: at,
		}

		refs := []string{threatID, fmt.Sprintf("th-%03d", (i+1)%n+1)}
		if i == 0 {
			refs = append(refs, "th-missing")
		}
		vulns[i] = model.Vulnerability{
			ID:          fmt.Sprintf("v-%03d", i+1),
			Title:       fmt.Sprintf("%s (%d)", vulnTitles[i%len(vulnTitles)], i+1),
			Description: "Generated sample vulnerability.",
			CveID:       fmt.Sprintf("CVE-2024-%04d", 1000+i),
			Cwes:        []string{fmt.Sprintf("CWE-%d", 79+i%10)},
			Severity:    model.Severities[(i*5+1)%len(model.Severities)],
			Status:      model.VulnerabilityStatuses[i%len(model.VulnerabilityStatuses)],
			Score:       float64((i*7)%100) / 10,
			ThreatIDs:   refs,
			CreatedAt:   at,
			UpdatedAt:   at,
		}

		artifacts[i] = model.Artifact{
			ID:          fmt.Sprintf("a-%03d", i+1),
			Name:        fmt.Sprintf("%s %d", artifactNames[i%len(artifactNames)], i+1),
			Description: "Generated sample artifact.",
			Type:        model.ArtifactTypes[i%len(model.ArtifactTypes)],
			URL:         fmt.Sprintf("https://app%d.example.com", i+1),
			ThreatIDs:   []string{threatID},
			CreatedAt:   at,
			UpdatedAt:   at,
		}

		tickets[i] = model.Ticket{
			ID:          fmt.Sprintf("t-%03d", i+1),
			Title:       fmt.Sprintf("%s %s", ticketTitles[i%len(ticketTitles)], artifacts[i].Name),
			Description: "Generated sample ticket.",
			Status:      model.TicketStatuses[i%len(model.TicketStatuses)],
			Priority:    model.Priorities[(i*3+2)%len(model.Priorities)],
			Stage:       model.WorkflowStages[i%len(model.WorkflowStages)],
			Assignee:    members[i].Name,
			ThreatID:    threatID,
			CreatedAt:   at,
			UpdatedAt:   at.Add(time.Duration(i%5) * time.Minute),
		}
	}

	return map[model.Kind]any{
		model.KindMember:        members,
		model.KindThreat:        threats,
		model.KindVulnerability: vulns,
		model.KindArtifact:      artifacts,
		model.KindTicket:        tickets,
	}
}
