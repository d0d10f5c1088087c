package view

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secboard/internal/model"
)

func fiveTickets() []model.Ticket {
	now := time.Now()
	return []model.Ticket{
		{ID: "t1", Title: "Rotate leaked API key", Status: model.StatusNotAccepted, Priority: "High", UpdatedAt: now.Add(-5 * time.Hour)},
		{ID: "t2", Title: "Patch OpenSSL", Description: "CVE-2024-0001 on edge nodes", Status: model.StatusProcessing, Priority: "Critical", UpdatedAt: now.Add(-4 * time.Hour)},
		{ID: "t3", Title: "Harden CSP headers", Status: model.StatusProcessing, Priority: "Medium", UpdatedAt: now.Add(-3 * time.Hour)},
		{ID: "t4", Title: "Review IAM roles", Status: model.StatusSubmitted, Priority: "Low", UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "t5", Title: "Enable audit logging", Status: model.StatusResolved, Priority: "Medium", UpdatedAt: now.Add(-1 * time.Hour)},
	}
}

func numberedTickets(n int) []model.Ticket {
	out := make([]model.Ticket, n)
	for i := range out {
		out[i] = model.Ticket{ID: fmt.Sprintf("t%02d", i+1), Title: fmt.Sprintf("Ticket %02d", i+1), Status: model.StatusProcessing}
	}
	return out
}

func ids(ts []model.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestScenarioA_UnfilteredTickets(t *testing.T) {
	e := NewEngine(TicketProfile(), "en")
	e.Load(fiveTickets())

	v := e.Derive(NewFilterState(5))

	status, ok := v.Summary.Get(FieldStatus)
	require.True(t, ok)
	assert.Equal(t, map[string]int{
		model.StatusNotAccepted: 1,
		model.StatusProcessing:  2,
		model.StatusSubmitted:   1,
		model.StatusResolved:    1,
	}, status.Map())
	assert.Equal(t, 1, v.PageCount)
	assert.Len(t, v.Items, 5)
	assert.Equal(t, "1-5 of 5", v.RangeLabel)
}

func TestScenarioB_StatusFilter(t *testing.T) {
	e := NewEngine(TicketProfile(), "en")
	e.Load(fiveTickets())

	st := NewFilterState(5)
	st.SelectCategory(FieldStatus, model.StatusProcessing)
	v := e.Derive(st)

	assert.Len(t, v.Items, 2)
	assert.Equal(t, 1, v.PageCount)
	assert.Equal(t, []string{"t2", "t3"}, ids(v.Items))

	// Raw summary is independent of the active filter; the breakdown is not.
	raw, _ := v.Summary.Get(FieldStatus)
	assert.Equal(t, 5, raw.Total)
	filtered, _ := v.Breakdown.Get(FieldStatus)
	assert.Equal(t, 2, filtered.Total)
	assert.Equal(t, 2, filtered.Count(model.StatusProcessing))
	assert.Equal(t, 0, filtered.Count(model.StatusResolved))
}

func TestScenarioC_PagingTwelveItems(t *testing.T) {
	e := NewEngine(TicketProfile(), "en")
	e.Load(numberedTickets(12))

	st := NewFilterState(5)
	st.SetPage(2)
	v := e.Derive(st)

	assert.Equal(t, 3, v.PageCount)
	assert.Len(t, v.Items, 2)
	assert.Equal(t, "11-12 of 12", v.RangeLabel)
	assert.Equal(t, []string{"t11", "t12"}, ids(v.Items))
}

func TestScenarioD_NoMatchThenClear(t *testing.T) {
	e := NewEngine(TicketProfile(), "en")
	e.Load(numberedTickets(12))

	st := NewFilterState(5)
	st.SetPage(1)
	st.SetSearchTerm("xyz-no-match")
	assert.Equal(t, 0, st.Page)

	v := e.Derive(st)
	assert.Empty(t, v.Items)
	assert.NotNil(t, v.Items)
	assert.Equal(t, 1, v.PageCount)
	assert.Equal(t, 0, v.TotalMatching)
	assert.Equal(t, "0-0 of 0", v.RangeLabel)
	for _, h := range v.Breakdown.Histograms {
		for _, b := range h.Buckets {
			assert.Zero(t, b.Count, "breakdown %s/%s", h.Field, b.Name)
		}
	}

	st.SetPage(2)
	st.ClearFilters()
	assert.Equal(t, 0, st.Page)
	v = e.Derive(st)
	assert.Equal(t, 12, v.TotalMatching)
	assert.Equal(t, 0, v.Page)
	assert.Len(t, v.Items, 5)
}

func TestEmptyCollection(t *testing.T) {
	e := NewEngine(ThreatProfile(), "en")
	v := e.Derive(NewFilterState(10))

	assert.Empty(t, v.Items)
	assert.Equal(t, 1, v.PageCount)
	assert.Equal(t, uint64(0), v.Generation)
	for _, h := range v.Summary.Histograms {
		assert.Zero(t, h.Total)
		assert.Len(t, h.Buckets, len(ThreatProfile().Categories[h.Field].Known))
	}
}

func TestOutOfRangePageIsClamped(t *testing.T) {
	e := NewEngine(TicketProfile(), "en")
	e.Load(numberedTickets(12))

	st := NewFilterState(5)
	st.SetPage(9)
	v := e.Derive(st)
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, "11-12 of 12", v.RangeLabel)
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	p := VulnerabilityProfile()
	vulns := []model.Vulnerability{
		{ID: "v1", Title: "SQL injection", CveID: "CVE-2023-1111"},
		{ID: "v2", Title: "XSS", Cwes: []string{"CWE-79"}},
		{ID: "v3", Title: "Weak TLS"}, // no description, no cve
	}

	cases := map[string][]string{
		"cve-2023":  {"v1"},
		"cwe-79":    {"v2"},
		"TLS":       {"v3"},
		"injection": {"v1"},
		"":          {"v1", "v2", "v3"},
		"nothing":   {},
	}
	for term, want := range cases {
		st := NewFilterState(10)
		st.SetSearchTerm(term)
		got := Filter(vulns, p, st)
		gotIDs := make([]string, 0, len(got))
		for _, v := range got {
			gotIDs = append(gotIDs, v.ID)
		}
		assert.Equal(t, want, gotIDs, "term %q", term)
	}
}

func TestSearchUsesUnicodeCaseFolding(t *testing.T) {
	p := ArtifactProfile()
	artifacts := []model.Artifact{
		{ID: "a1", Name: "Straße portal"},
		{ID: "a2", Name: "ΣΊΣΥΦΟΣ gateway"},
		{ID: "a3", Name: "Payments API"},
	}

	for term, want := range map[string]string{
		"STRASSE":  "a1",
		"straße":   "a1",
		"σίσυφος":  "a2",
		"payments": "a3",
	} {
		st := NewFilterState(10)
		st.SetSearchTerm(term)
		got := Filter(artifacts, p, st)
		require.Len(t, got, 1, "term %q", term)
		assert.Equal(t, want, got[0].ID, "term %q", term)
	}
}

func TestAggregateFoldsKnownValues(t *testing.T) {
	items := []string{"STRASSE", "straße", " Ἀθῆναι ", "other"}
	h := Aggregate(items, FieldType, func(s string) string { return s }, []string{"Straße", "ἀθῆναι"})
	assert.Equal(t, 2, h.Count("Straße"))
	assert.Equal(t, 1, h.Count("ἀθῆναι"))
	assert.Equal(t, 1, h.Count(UnknownBucket))
	assert.Equal(t, 4, h.Total)
}

func TestCategoryFiltersCombineWithAnd(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{
		{ID: "a", Type: "Spoofing", Severity: "High"},
		{ID: "b", Type: "Spoofing", Severity: "Low"},
		{ID: "c", Type: "Tampering", Severity: "High"},
	}
	st := NewFilterState(10)
	st.ToggleCategory(FieldType, "Spoofing")
	st.ToggleCategory(FieldSeverity, "high")

	got := Filter(threats, p, st)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	// Multi-select within one field is an OR.
	st.ToggleCategory(FieldType, "Tampering")
	assert.Len(t, Filter(threats, p, st), 2)

	// Toggling the same value twice removes it.
	st.ToggleCategory(FieldType, "Tampering")
	st.ToggleCategory(FieldType, "Spoofing")
	assert.Empty(t, st.Selection(FieldType))
	assert.Len(t, Filter(threats, p, st), 2)
}

func TestSelectAllSentinelEqualsEmptySelection(t *testing.T) {
	p := TicketProfile()
	items := fiveTickets()

	st := NewFilterState(10)
	st.SelectCategory(FieldStatus, model.StatusResolved)
	assert.Len(t, Filter(items, p, st), 1)

	st.SelectCategory(FieldStatus, AllCategories)
	assert.False(t, st.Active())
	assert.Len(t, Filter(items, p, st), 5)
}

func TestFilterIdempotence(t *testing.T) {
	p := TicketProfile()
	st := NewFilterState(10)
	st.SetSearchTerm("p")
	st.ToggleCategory(FieldPriority, "Medium")
	st.ToggleCategory(FieldPriority, "Critical")

	once := Filter(fiveTickets(), p, st)
	twice := Filter(once, p, st)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("filter not idempotent (-once +twice):\n%s", diff)
	}
}

func TestPageResetsOnInputChange(t *testing.T) {
	st := NewFilterState(5)

	st.SetPage(3)
	st.SetSearchTerm("x")
	assert.Equal(t, 0, st.Page)

	st.SetPage(3)
	st.SetSearchTerm("x") // unchanged value keeps the page
	assert.Equal(t, 3, st.Page)

	st.ToggleCategory(FieldStatus, "Processing")
	assert.Equal(t, 0, st.Page)

	st.SetPage(3)
	st.SetSortKey(SortName)
	assert.Equal(t, 0, st.Page)

	st.SetPage(-4)
	assert.Equal(t, 0, st.Page)
}

func TestPaginationCoverage(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 6, 12, 23} {
		items := numberedTickets(n)
		for _, size := range []int{1, 3, 5, 10} {
			count := PageCount(len(items), size)
			var all []model.Ticket
			for page := 0; page < count; page++ {
				all = append(all, Paginate(items, page, size).Items...)
			}
			assert.Equal(t, ids(items), ids(all), "n=%d size=%d", n, size)
		}
	}
}

func TestPaginateOutOfRangeNeverPanics(t *testing.T) {
	items := numberedTickets(3)
	p := Paginate(items, 7, 2)
	assert.Empty(t, p.Items)
	assert.Equal(t, 2, p.PageCount)

	p = Paginate(items, -1, 0)
	assert.Len(t, p.Items, 3)
	assert.Equal(t, 1, p.PageCount)

	q := Paginate([]int{1, 2, 3}, 1<<60-1, 16)
	assert.Empty(t, q.Items)
	assert.Equal(t, 1, q.PageCount)

	p = Paginate(items, math.MaxInt, math.MaxInt)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.PageCount)

	p = Paginate(items, 0, math.MaxInt)
	assert.Len(t, p.Items, 3)
}

func TestRangeLabel(t *testing.T) {
	assert.Equal(t, "1-5 of 12", RangeLabel(0, 5, 12))
	assert.Equal(t, "6-10 of 12", RangeLabel(1, 5, 12))
	assert.Equal(t, "11-12 of 12", RangeLabel(2, 5, 12))
	assert.Equal(t, "0-0 of 0", RangeLabel(0, 5, 0))
	assert.Equal(t, "12-12 of 12", RangeLabel(9, 5, 12))
	assert.Equal(t, "3-3 of 3", RangeLabel(math.MaxInt/2, 10, 3))
	assert.Equal(t, "1-3 of 3", RangeLabel(0, math.MaxInt, 3))
}

func TestAggregationSumInvariant(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{
		{ID: "1", Type: "Spoofing", Severity: "High", MitigationStatus: "Mitigated"},
		{ID: "2", Type: "tampering", Severity: "critical"},
		{ID: "3", Type: "Phishing", Severity: "Extreme", MitigationStatus: "Not mitigated"},
		{ID: "4"},
	}
	agg := Summarize(threats, p)
	require.Len(t, agg.Histograms, 3)
	for _, h := range agg.Histograms {
		sum := 0
		for _, b := range h.Buckets {
			sum += b.Count
		}
		assert.Equal(t, len(threats), sum, "field %s", h.Field)
		assert.Equal(t, len(threats), h.Total)
	}

	typ, _ := agg.Get(FieldType)
	assert.Equal(t, 1, typ.Count("Tampering"))
	assert.Equal(t, 2, typ.Count(UnknownBucket))
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	in := fiveTickets()
	before := ids(in)
	_ = Summarize(in, TicketProfile())
	assert.Equal(t, before, ids(in))
}

func TestSummaryAndBreakdownProfilesDiffer(t *testing.T) {
	p := ThreatProfile()
	threats := []model.Threat{{ID: "1", Type: "Spoofing", MitigationStatus: "Mitigated"}}

	_, inSummary := Summarize(threats, p).Get(FieldMitigation)
	_, inBreakdown := Breakdown(threats, p).Get(FieldMitigation)
	assert.True(t, inSummary)
	assert.False(t, inBreakdown)
}

func TestEngineGenerations(t *testing.T) {
	e := NewEngine(TicketProfile(), "en")
	assert.Equal(t, uint64(1), e.Load(fiveTickets()))
	assert.Equal(t, uint64(2), e.Load(numberedTickets(3)))

	v := e.Derive(NewFilterState(10))
	assert.Equal(t, uint64(2), v.Generation)
	assert.Equal(t, 3, v.Total)
	status, _ := v.Summary.Get(FieldStatus)
	assert.Equal(t, 3, status.Count(model.StatusProcessing))

	snap, gen := e.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, uint64(2), gen)
}

func TestFilterStateIsSerializable(t *testing.T) {
	st := NewFilterState(25)
	st.SetSearchTerm("csp")
	st.ToggleCategory(FieldStatus, "Processing")
	st.SetSortKey(SortName)

	assert.Equal(t, []string{"Processing"}, st.Selection(FieldStatus))
	assert.True(t, st.Active())
	assert.Equal(t, 25, st.PageSize)
}
