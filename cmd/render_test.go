package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secboard/internal/model"
	"github.com/Ashfaaq98/secboard/internal/ui"
	"github.com/Ashfaaq98/secboard/internal/view"
)

func sampleTickets() []model.Ticket {
	return []model.Ticket{
		{ID: "t-1", Title: "Patch the customer portal\nbefore release", Status: model.StatusProcessing, Priority: "High"},
		{ID: "t-2", Title: "Rotate credentials", Status: model.StatusResolved, Priority: "Low"},
		{ID: "t-3", Title: "Harden the admin console", Status: model.StatusProcessing, Priority: ""},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, ui.TicketColumns(), sampleTickets(), 0))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[0], "ASSIGNEE")
	assert.Contains(t, lines[1], "Patch the customer portal before release", "newlines are folded")
	assert.Contains(t, lines[2], "Rotate credentials")
}

func TestWriteTableTruncatesExpandingColumns(t *testing.T) {
	items := []model.Ticket{{ID: "t-1", Title: strings.Repeat("x", 200), Status: model.StatusSubmitted}}

	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, ui.TicketColumns(), items, 80))
	assert.NotContains(t, buf.String(), strings.Repeat("x", 100))
	assert.Contains(t, buf.String(), "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo w...", truncate("héllo wörld, again", 10))
}

func TestExpandLimitFloor(t *testing.T) {
	cols := ui.TicketColumns()
	widths := []int{5, 40, 12, 8, 14, 20, 16}
	assert.Equal(t, 0, expandLimit(cols, widths, 0))
	assert.Equal(t, minExpandWidth, expandLimit(cols, widths, 40))
	assert.Equal(t, 200-(5+12+8+14+20+16)-12, expandLimit(cols, widths, 200))
}

func TestWriteHistograms(t *testing.T) {
	items := sampleTickets()
	agg := view.Summarize(items, view.TicketProfile())

	var buf bytes.Buffer
	writeHistograms(&buf, agg)
	out := buf.String()
	assert.Contains(t, out, "  Status: Not accepted 0  Processing 2  Submitted 0  Resolved 1\n")
	assert.Contains(t, out, "  Priority: Low 1  Medium 0  High 1  Critical 0  Unknown 1\n")
}

func TestWriteView(t *testing.T) {
	p := view.TicketProfile()
	st := view.NewFilterState(2)

	var buf bytes.Buffer
	v := view.Derive(sampleTickets(), p, st, "en")
	require.NoError(t, writeView(&buf, v, ui.TicketColumns(), st.Active(), 0))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "1-2 of 3  (page 1/2)\n"))
	assert.Contains(t, out, "t-1")
	assert.NotContains(t, out, "t-3")
	assert.Contains(t, out, "Breakdown (3 matching):")
}

func TestWriteViewEmptyStates(t *testing.T) {
	p := view.TicketProfile()

	var buf bytes.Buffer
	st := view.NewFilterState(10)
	require.NoError(t, writeView(&buf, view.Derive(nil, p, st, "en"), ui.TicketColumns(), st.Active(), 0))
	assert.Contains(t, buf.String(), "0-0 of 0")
	assert.Contains(t, buf.String(), "No items\n")

	buf.Reset()
	st.SetSearchTerm("nothing matches this")
	require.NoError(t, writeView(&buf, view.Derive(sampleTickets(), p, st, "en"), ui.TicketColumns(), st.Active(), 0))
	assert.Contains(t, buf.String(), "No items match the current filters")
}

func TestFieldTitle(t *testing.T) {
	assert.Equal(t, "Mitigation", fieldTitle(view.FieldMitigation))
	assert.Equal(t, "", fieldTitle(""))
}
