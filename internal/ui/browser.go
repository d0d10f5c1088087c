package ui

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/view"
)

// Options configures a Browser
type Options[T any] struct {
	Title    string
	Columns  []Column[T]
	Detail   func(T) string
	PageSize int
	// State is the initial filter state; nil starts unfiltered.
	State *view.FilterState
	Theme string
	// Reload refetches the collection on 'r'; nil disables the key.
	Reload func(ctx context.Context) ([]T, error)
	// OnStart runs in its own goroutine once the screen is up; background
	// work that reports through Load, SetProgress or Redraw starts here.
	OnStart func(ctx context.Context)
	Logger  *log.Logger
}

// Browser is a terminal list screen over one view.Engine. Every key handler
// mutates the FilterState and re-derives, so handlers can be driven without a terminal.
type Browser[T any] struct {
	app    *tview.Application
	engine *view.Engine[T]
	state  *view.FilterState
	opts   Options[T]
	logger *log.Logger

	root      *tview.Flex
	title     *tview.TextView
	summary   *tview.TextView
	search    *tview.InputField
	chips     *tview.TextView
	table     *tview.Table
	detail    *tview.TextView
	breakdown *tview.TextView
	statusBar *tview.TextView

	current   view.DerivedView[T]
	fields    []view.CategoryField
	sortKeys  []view.SortKey
	chipField int
	chipValue int
	message   string

	mu       sync.Mutex
	progress *enrich.Progress

	theme     Theme
	themeName string
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewBrowser[T any](engine *view.Engine[T], opts Options[T]) *Browser[T] {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Title == "" {
		opts.Title = engine.Profile().Name
	}
	p := engine.Profile()
	state := view.NewFilterState(opts.PageSize)
	if opts.State != nil {
		cp := *opts.State
		state = &cp
	}
	b := &Browser[T]{
		app:      tview.NewApplication(),
		engine:   engine,
		state:    state,
		opts:     opts,
		logger:   logger,
		fields:   p.Fields(),
		sortKeys: append([]view.SortKey{view.SortDefault}, p.SortKeys()...),
		ctx:      context.Background(),
		cancel:   func() {},
	}
	b.themeName, b.theme = themeByName(opts.Theme)
	b.setupLayout()
	b.applyTheme()
	b.refresh()
	if b.state.SearchTerm != "" {
		b.search.SetText(b.state.SearchTerm)
	}
	return b
}

func (b *Browser[T]) setupLayout() {
	b.title = tview.NewTextView().SetDynamicColors(true)

	b.summary = tview.NewTextView().SetDynamicColors(true)
	b.summary.SetBorder(true)
	b.summary.SetTitle(" Summary ")
	b.summary.SetTitleAlign(tview.AlignLeft)

	b.search = tview.NewInputField().
		SetLabel(" Search: ").
		SetPlaceholder("press / to search")
	b.search.SetChangedFunc(func(text string) {
		b.setSearch(text)
	})

	b.chips = tview.NewTextView().SetDynamicColors(true)

	b.table = tview.NewTable()
	b.table.SetBorder(true)
	b.table.SetTitleAlign(tview.AlignLeft)
	b.table.SetSelectable(true, false)
	b.table.SetFixed(1, 0)
	b.table.SetSelectionChangedFunc(func(row, col int) {
		b.renderDetail(row)
	})

	b.detail = tview.NewTextView().SetWordWrap(true).SetScrollable(true)
	b.detail.SetBorder(true)
	b.detail.SetTitle(" Details ")
	b.detail.SetTitleAlign(tview.AlignLeft)

	b.breakdown = tview.NewTextView().SetDynamicColors(true)
	b.statusBar = tview.NewTextView().SetDynamicColors(true)

	body := tview.NewFlex().
		AddItem(b.table, 0, 3, true).
		AddItem(b.detail, 0, 2, false)

	summaryRows := len(b.engine.Profile().Summary.Fields) + 2
	b.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(b.title, 1, 0, false).
		AddItem(b.summary, summaryRows, 0, false).
		AddItem(b.search, 1, 0, false).
		AddItem(b.chips, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(b.breakdown, len(b.engine.Profile().Breakdown.Fields), 0, false).
		AddItem(b.statusBar, 1, 0, false)

	b.app.SetRoot(b.root, true)
	b.app.SetInputCapture(b.handleKey)
	b.app.SetFocus(b.table)
}

// Run shows the browser until q is pressed or ctx is done.
func (b *Browser[T]) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()
	go func() {
		<-b.ctx.Done()
		b.app.Stop()
	}()
	b.running.Store(true)
	defer b.running.Store(false)
	if b.opts.OnStart != nil {
		go b.opts.OnStart(b.ctx)
	}
	b.logger.Printf("Browsing %s (%d items)", b.opts.Title, b.current.Total)
	return b.app.Run()
}

// Stop closes the browser
func (b *Browser[T]) Stop() {
	b.cancel()
	b.app.Stop()
}

// update runs fn on the UI goroutine when the app is running, inline otherwise.
func (b *Browser[T]) update(fn func()) {
	if b.running.Load() {
		b.app.QueueUpdateDraw(fn)
		return
	}
	fn()
}

// Load replaces the collection. Safe to call from any goroutine.
func (b *Browser[T]) Load(items []T) {
	b.update(func() {
		b.engine.Load(items)
		b.refresh()
	})
}

// SetProgress shows enrichment progress in the status bar. Safe to call from
// fetcher worker goroutines. Reports from a generation older than the one
// shown are dropped, as are late reports after a generation is done.
func (b *Browser[T]) SetProgress(p enrich.Progress) {
	b.mu.Lock()
	if cur := b.progress; cur != nil {
		if p.Generation < cur.Generation || (p.Generation == cur.Generation && cur.Done && !p.Done) {
			b.mu.Unlock()
			return
		}
	}
	b.progress = &p
	b.mu.Unlock()
	b.update(b.renderStatus)
}

// Redraw re-renders the detail pane, e.g. after referenced entities resolved.
func (b *Browser[T]) Redraw() {
	b.update(func() {
		row, _ := b.table.GetSelection()
		b.renderDetail(row)
	})
}

// State exposes the current filter state (read-only use)
func (b *Browser[T]) State() view.FilterState { return *b.state }

// View returns the last derived view
func (b *Browser[T]) View() view.DerivedView[T] { return b.current }

func (b *Browser[T]) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if b.app.GetFocus() == b.search {
		switch ev.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyTab:
			b.app.SetFocus(b.table)
			return nil
		}
		return ev
	}

	switch ev.Key() {
	case tcell.KeyRight, tcell.KeyPgDn:
		b.nextPage()
		return nil
	case tcell.KeyLeft, tcell.KeyPgUp:
		b.prevPage()
		return nil
	case tcell.KeyHome:
		b.gotoPage(0)
		return nil
	case tcell.KeyEnd:
		b.gotoPage(b.current.PageCount - 1)
		return nil
	case tcell.KeyTab:
		b.moveChipField(1)
		return nil
	case tcell.KeyBacktab:
		b.moveChipField(-1)
		return nil
	case tcell.KeyEsc:
		b.clearFilters()
		return nil
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			b.Stop()
		case '/':
			b.app.SetFocus(b.search)
		case 's':
			b.cycleSort(1)
		case 'S':
			b.cycleSort(-1)
		case 'n':
			b.nextPage()
		case 'p':
			b.prevPage()
		case 'g':
			b.gotoPage(0)
		case 'G':
			b.gotoPage(b.current.PageCount - 1)
		case ']':
			b.moveChipValue(1)
		case '[':
			b.moveChipValue(-1)
		case ' ':
			b.toggleChip()
		case 'a':
			b.clearChipField()
		case 'c':
			b.clearFilters()
		case 't':
			b.cycleTheme()
		case 'r':
			b.reload()
		default:
			return ev
		}
		return nil
	}
	return ev
}

func (b *Browser[T]) setSearch(term string) {
	if b.search.GetText() != term {
		b.search.SetText(term)
	}
	b.state.SetSearchTerm(term)
	b.refresh()
}

func (b *Browser[T]) nextPage() { b.gotoPage(b.current.Page + 1) }
func (b *Browser[T]) prevPage() { b.gotoPage(b.current.Page - 1) }

func (b *Browser[T]) gotoPage(n int) {
	b.state.SetPage(n)
	b.refresh()
}

func (b *Browser[T]) cycleSort(delta int) {
	idx := 0
	for i, k := range b.sortKeys {
		if k == b.state.SortKey {
			idx = i
			break
		}
	}
	n := len(b.sortKeys)
	next := b.sortKeys[((idx+delta)%n+n)%n]
	b.state.SetSortKey(next)
	b.message = "Sort: " + sortLabel(next)
	b.refresh()
}

func sortLabel(k view.SortKey) string {
	if k == view.SortDefault {
		return "default"
	}
	return string(k)
}

func (b *Browser[T]) moveChipField(delta int) {
	if len(b.fields) == 0 {
		return
	}
	n := len(b.fields)
	b.chipField = ((b.chipField+delta)%n + n) % n
	b.chipValue = 0
	b.renderChips()
}

func (b *Browser[T]) moveChipValue(delta int) {
	values := b.chipValues()
	if len(values) == 0 {
		return
	}
	n := len(values)
	b.chipValue = ((b.chipValue+delta)%n + n) % n
	b.renderChips()
}

// chipValues lists the selectable values of the focused field: the known
// vocabulary, or the observed buckets when none is defined.
func (b *Browser[T]) chipValues() []string {
	if len(b.fields) == 0 {
		return nil
	}
	f := b.fields[b.chipField]
	if known := b.engine.Profile().Categories[f].Known; len(known) > 0 {
		return known
	}
	h := view.Summarize(b.snapshot(), b.engine.Profile())
	hist, _ := h.Get(f)
	out := make([]string, 0, len(hist.Buckets))
	for _, bk := range hist.Buckets {
		out = append(out, bk.Name)
	}
	return out
}

func (b *Browser[T]) snapshot() []T {
	items, _ := b.engine.Snapshot()
	return items
}

func (b *Browser[T]) toggleChip() {
	values := b.chipValues()
	if len(values) == 0 {
		return
	}
	b.state.ToggleCategory(b.fields[b.chipField], values[b.chipValue])
	b.refresh()
}

func (b *Browser[T]) clearChipField() {
	if len(b.fields) == 0 {
		return
	}
	b.state.SelectCategory(b.fields[b.chipField], view.AllCategories)
	b.refresh()
}

func (b *Browser[T]) clearFilters() {
	b.state.ClearFilters()
	if b.search.GetText() != "" {
		b.search.SetText("")
	}
	b.message = "Filters cleared"
	b.refresh()
}

func (b *Browser[T]) cycleTheme() {
	idx := 0
	for i, name := range themeOrder {
		if name == b.themeName {
			idx = i
		}
	}
	b.themeName, b.theme = themeByName(themeOrder[(idx+1)%len(themeOrder)])
	b.applyTheme()
	b.message = "Theme: " + b.themeName
	b.refresh()
}

func (b *Browser[T]) reload() {
	if b.opts.Reload == nil {
		b.message = "Reload not available for this source"
		b.renderStatus()
		return
	}
	b.message = "Reloading..."
	b.renderStatus()
	ctx := b.ctx
	go func() {
		start := time.Now()
		items, err := b.opts.Reload(ctx)
		b.update(func() {
			if err != nil {
				b.logger.Printf("Reload failed: %v", err)
				b.message = fmt.Sprintf("[%s]Reload failed: %v[-]", b.theme.TagError, tview.Escape(err.Error()))
				b.renderStatus()
				return
			}
			b.engine.Load(items)
			b.message = fmt.Sprintf("Reloaded %d items in %v", len(items), time.Since(start).Round(time.Millisecond))
			b.refresh()
		})
	}()
}

// refresh re-derives the view and redraws every widget.
func (b *Browser[T]) refresh() {
	b.current = b.engine.Derive(b.state)
	b.renderTitle()
	b.renderSummary()
	b.renderChips()
	b.renderTable()
	b.renderBreakdown()
	b.renderStatus()
}

func (b *Browser[T]) renderTitle() {
	b.title.SetText(fmt.Sprintf(" [%s]secboard[-] [%s]/[-] %s", b.theme.TagAccent, b.theme.TagMuted, tview.Escape(b.opts.Title)))
}

func (b *Browser[T]) renderSummary() {
	b.summary.SetText(histogramLines(b.current.Summary, b.theme))
}

func (b *Browser[T]) renderBreakdown() {
	b.breakdown.SetText(histogramLines(b.current.Breakdown, b.theme))
}

func histogramLines(a view.Aggregates, theme Theme) string {
	lines := make([]string, 0, len(a.Histograms))
	for _, h := range a.Histograms {
		parts := make([]string, 0, len(h.Buckets))
		for _, bk := range h.Buckets {
			parts = append(parts, fmt.Sprintf("%s [%s]%d[-]", tview.Escape(bk.Name), theme.TagAccent, bk.Count))
		}
		lines = append(lines, fmt.Sprintf(" [%s]%s:[-] %s", theme.TagMuted, fieldLabel(h.Field), strings.Join(parts, "  ")))
	}
	return strings.Join(lines, "\n")
}

func fieldLabel(f view.CategoryField) string {
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (b *Browser[T]) renderChips() {
	if len(b.fields) == 0 {
		b.chips.SetText("")
		return
	}
	var parts []string
	for i, f := range b.fields {
		sel := b.state.Selection(f)
		if i != b.chipField {
			label := view.AllCategories
			if len(sel) > 0 {
				label = strings.Join(sel, ", ")
			}
			parts = append(parts, fmt.Sprintf("[%s]%s:[-] %s", b.theme.TagMuted, fieldLabel(f), tview.Escape(label)))
			continue
		}
		selected := make(map[string]bool, len(sel))
		for _, v := range sel {
			selected[strings.ToLower(v)] = true
		}
		values := b.chipValues()
		chips := make([]string, 0, len(values))
		for j, v := range values {
			mark := " "
			if selected[strings.ToLower(v)] {
				mark = "x"
			}
			chip := fmt.Sprintf("[%s[]%s", mark, tview.Escape(v))
			if j == b.chipValue {
				chip = fmt.Sprintf("[%s::u]%s[-::-]", b.theme.TagAccent, chip)
			}
			chips = append(chips, chip)
		}
		parts = append(parts, fmt.Sprintf("[%s::b]%s:[-::-] %s", b.theme.TagAccent, fieldLabel(f), strings.Join(chips, " ")))
	}
	b.chips.SetText(" " + strings.Join(parts, "  |  "))
}

func (b *Browser[T]) renderTable() {
	b.table.Clear()
	b.table.SetTitle(fmt.Sprintf(" %s (%d/%d) ", b.opts.Title, b.current.TotalMatching, b.current.Total))
	for col, c := range b.opts.Columns {
		b.table.SetCell(0, col, tview.NewTableCell(c.Title).
			SetTextColor(b.theme.TableHeader).
			SetBackgroundColor(b.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	if len(b.current.Items) == 0 {
		msg := "No items"
		if b.state.Active() {
			msg = "No items match the current filters"
		}
		b.table.SetCell(1, 0, tview.NewTableCell(msg).SetTextColor(b.theme.TextMuted).SetSelectable(false))
		b.detail.SetText("")
		return
	}
	for i, item := range b.current.Items {
		row := i + 1
		bg := b.theme.TableZebra1
		if i%2 == 1 {
			bg = b.theme.TableZebra2
		}
		for col, c := range b.opts.Columns {
			v := c.Value(item)
			cell := tview.NewTableCell(tview.Escape(v)).
				SetTextColor(b.theme.TextPrimary).
				SetBackgroundColor(bg).
				SetExpansion(c.Expand)
			if c.Level {
				cell.SetTextColor(tcell.GetColor(b.theme.levelTag(v)))
			}
			b.table.SetCell(row, col, cell)
		}
	}
	b.table.Select(1, 0)
	b.table.ScrollToBeginning()
	b.renderDetail(1)
}

func (b *Browser[T]) renderDetail(row int) {
	idx := row - 1
	if b.opts.Detail == nil || idx < 0 || idx >= len(b.current.Items) {
		b.detail.SetText("")
		return
	}
	b.detail.SetText(b.opts.Detail(b.current.Items[idx]))
	b.detail.ScrollToBeginning()
}

func (b *Browser[T]) renderStatus() {
	b.statusBar.SetText(b.statusText())
}

func (b *Browser[T]) statusText() string {
	parts := []string{
		fmt.Sprintf("[%s]%s[-]", b.theme.TagTextPrimary, b.current.RangeLabel),
		fmt.Sprintf("page %d/%d", b.current.Page+1, b.current.PageCount),
		"sort " + sortLabel(b.state.SortKey),
	}
	b.mu.Lock()
	p := b.progress
	b.mu.Unlock()
	if p != nil {
		if p.Done {
			tag := b.theme.TagSuccess
			if p.Failed > 0 {
				tag = b.theme.TagWarning
			}
			parts = append(parts, fmt.Sprintf("[%s]resolved %d/%d, %d failed[-]", tag, p.Succeeded, p.Total, p.Failed))
		} else {
			parts = append(parts, fmt.Sprintf("[%s]%s[-]", b.theme.TagWarning, p.String()))
		}
	}
	if b.message != "" {
		parts = append(parts, b.message)
	}
	hints := fmt.Sprintf("[%s]/ search  s sort  n/p page  tab field  [ ] value  space toggle  c clear  q quit[-]", b.theme.TagMuted)
	return " " + strings.Join(parts, fmt.Sprintf(" [%s]|[-] ", b.theme.TagMuted)) + "   " + hints
}

func (b *Browser[T]) applyTheme() {
	for _, tv := range []*tview.TextView{b.title, b.summary, b.chips, b.detail, b.breakdown, b.statusBar} {
		tv.SetBackgroundColor(b.theme.Surface)
		tv.SetTextColor(b.theme.TextPrimary)
		tv.SetBorderColor(b.theme.Border)
	}
	b.search.SetBackgroundColor(b.theme.Surface)
	b.search.SetLabelColor(b.theme.TextMuted)
	b.search.SetFieldBackgroundColor(b.theme.SelectionBg)
	b.search.SetFieldTextColor(b.theme.TextPrimary)
	b.table.SetBackgroundColor(b.theme.Surface)
	b.table.SetBorderColor(b.theme.FocusBorder)
	b.table.SetSelectedStyle(tcell.StyleDefault.Background(b.theme.SelectionBg).Foreground(b.theme.SelectionFg))
	b.root.SetBackgroundColor(b.theme.Surface)
}
