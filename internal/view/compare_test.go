package view

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ashfaaq98/secboard/internal/model"
)

func threatNames(ts []model.Threat) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

func TestTextSortIsAscendingAndLocaleAware(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{{Name: "zeta"}, {Name: "Éclair"}, {Name: "alpha"}, {Name: "Bravo"}}

	got := Sort(threats, SortName, p, NewCollator("en"))
	assert.Equal(t, []string{"alpha", "Bravo", "Éclair", "zeta"}, threatNames(got))

	// input untouched
	assert.Equal(t, "zeta", threats[0].Name)
}

func TestRiskSortIsDescending(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{
		{Name: "low", RiskScore: 2},
		{Name: "high", RiskScore: 9},
		{Name: "dread", Dread: &model.DreadScore{Damage: 5, Reproducibility: 5, Exploitability: 5, AffectedUsers: 5, Discoverability: 0}},
	}
	got := Sort(threats, SortRisk, p, NewCollator("en"))
	assert.Equal(t, []string{"high", "dread", "low"}, threatNames(got))
}

func TestSortStabilityForTies(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{
		{ID: "1", Name: "a", Type: "Spoofing"},
		{ID: "2", Name: "b", Type: "Tampering"},
		{ID: "3", Name: "c", Type: "Spoofing"},
		{ID: "4", Name: "d", Type: "Tampering"},
		{ID: "5", Name: "e", Type: "Spoofing"},
	}
	got := Sort(threats, SortType, p, NewCollator("en"))
	assert.Equal(t, []string{"a", "c", "e", "b", "d"}, threatNames(got))

	tied := []model.Threat{{Name: "x", RiskScore: 5}, {Name: "y", RiskScore: 5}, {Name: "z", RiskScore: 5}}
	assert.Equal(t, []string{"x", "y", "z"}, threatNames(Sort(tied, SortRisk, p, nil)))
}

func TestUnknownSortKeyPreservesOrder(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{{Name: "c"}, {Name: "a"}, {Name: "b"}}

	assert.Equal(t, []string{"c", "a", "b"}, threatNames(Sort(threats, SortDefault, p, nil)))
	assert.Equal(t, []string{"c", "a", "b"}, threatNames(Sort(threats, SortKey("bogus"), p, nil)))
	assert.Zero(t, Compare(threats[0], threats[1], SortKey("bogus"), p, nil))
}

func TestCompareSigns(t *testing.T) {
	p := ThreatProfile()
	a := model.Threat{Name: "alpha", RiskScore: 1}
	b := model.Threat{Name: "beta", RiskScore: 8}
	col := NewCollator("en-US")

	assert.Negative(t, Compare(a, b, SortName, p, col))
	assert.Positive(t, Compare(a, b, SortRisk, p, col))
	assert.Zero(t, Compare(a, a, SortName, p, col))
}

func TestSeveritySortUsesLadder(t *testing.T) {
	p := VulnerabilityProfile()
	vulns := []model.Vulnerability{{Title: "m", Severity: "Medium"}, {Title: "c", Severity: "Critical"}, {Title: "u"}, {Title: "l", Severity: "low"}}
	got := Sort(vulns, SortSeverity, p, nil)
	titles := make([]string, len(got))
	for i, v := range got {
		titles[i] = v.Title
	}
	assert.Equal(t, []string{"c", "m", "l", "u"}, titles)
}

func TestNewCollatorFallsBack(t *testing.T) {
	assert.NotNil(t, NewCollator("not a tag"))
	assert.NotNil(t, NewCollator(""))
}

func TestPolicyKindString(t *testing.T) {
	assert.Equal(t, "text-asc", TextAscending.String())
	assert.Equal(t, "numeric-desc", NumericDescending.String())
}
