// Package tui provides a terminal browser for an open MBOX file.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/wesm/mboxbrowser/internal/session"
)

// listPageSize is how many entries are fetched from the session at a time
// while browsing the full list.
const listPageSize = 500

// searchLimit caps the results loaded for one search.
const searchLimit = 1000

// Browser is the session surface the TUI reads from.
type Browser interface {
	Stats() (*session.MboxStats, error)
	GetEmails(offset, limit int) ([]session.EmailEntry, error)
	GetEmailCount() int
	GetEmailBody(seq int) (*session.EmailBody, error)
	GetEmailsByLabel(label string) ([]session.EmailEntry, error)
	GetLabels() []session.LabelCount
	SearchAsync(ctx context.Context, query string, limit int) <-chan session.SearchOutcome
}

// viewLevel represents the current screen.
type viewLevel int

const (
	levelList viewLevel = iota
	levelDetail
	levelLabels
)

// listSource says where the entries on the list screen came from.
type listSource int

const (
	sourceAll listSource = iota
	sourceLabel
	sourceSearch
)

// Options configures the TUI.
type Options struct {
	Version string
}

// Model is the main TUI model following the Elm architecture.
type Model struct {
	box     Browser
	version string
	stats   *session.MboxStats

	level viewLevel

	// List screen
	source       listSource
	label        string // active label filter
	searchQuery  string // active search
	entries      []session.EmailEntry
	total        int // entries available from the source
	cursor       int
	scrollOffset int
	loadingMore  bool

	// Detail screen
	detail       *session.EmailBody
	detailEntry  session.EmailEntry
	detailLines  []string
	detailScroll int

	// Labels screen
	labels      []session.LabelCount
	labelCursor int

	// Search input
	searchInput  textinput.Model
	searchActive bool
	searching    bool
	searchCancel context.CancelFunc
	spinner      spinner.Model

	// Request tracking to ignore stale async results
	listRequestID   uint64
	detailRequestID uint64
	searchRequestID uint64

	width    int
	height   int
	pageSize int
	err      error
	quitting bool
}

// New returns the initial model. The session must already be open.
func New(box Browser, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "from:alice subject:report has:attachment"
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		box:         box,
		version:     opts.Version,
		searchInput: ti,
		spinner:     sp,
		pageSize:    20,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadStats(), m.loadPage(0))
}

type statsLoadedMsg struct {
	stats *session.MboxStats
	err   error
}

type entriesLoadedMsg struct {
	entries   []session.EmailEntry
	total     int
	append    bool
	err       error
	requestID uint64
}

type detailLoadedMsg struct {
	entry     session.EmailEntry
	body      *session.EmailBody
	err       error
	requestID uint64
}

type searchResultsMsg struct {
	query     string
	results   *session.SearchResults
	err       error
	requestID uint64
}

func (m Model) loadStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.box.Stats()
		return statsLoadedMsg{stats: stats, err: err}
	}
}

// loadPage fetches the next page of the full list starting at offset.
func (m Model) loadPage(offset int) tea.Cmd {
	requestID := m.listRequestID
	return func() tea.Msg {
		entries, err := m.box.GetEmails(offset, listPageSize)
		return entriesLoadedMsg{
			entries:   entries,
			total:     m.box.GetEmailCount(),
			append:    offset > 0,
			err:       err,
			requestID: requestID,
		}
	}
}

func (m Model) loadLabel(label string) tea.Cmd {
	requestID := m.listRequestID
	return func() tea.Msg {
		entries, err := m.box.GetEmailsByLabel(label)
		return entriesLoadedMsg{entries: entries, total: len(entries), err: err, requestID: requestID}
	}
}

func (m Model) loadDetail(entry session.EmailEntry) tea.Cmd {
	requestID := m.detailRequestID
	return func() tea.Msg {
		body, err := m.box.GetEmailBody(entry.Index)
		return detailLoadedMsg{entry: entry, body: body, err: err, requestID: requestID}
	}
}

// runSearch starts the search on the session's goroutine and waits for its
// single outcome.
func (m Model) runSearch(ctx context.Context, query string) tea.Cmd {
	requestID := m.searchRequestID
	ch := m.box.SearchAsync(ctx, query, searchLimit)
	return func() tea.Msg {
		out := <-ch
		return searchResultsMsg{query: query, results: out.Results, err: out.Err, requestID: requestID}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 0)
		m.height = max(msg.Height, 0)
		// title + header + separator + footer
		m.pageSize = max(m.height-4, 1)
		if m.detail != nil {
			m.detailLines = m.renderDetailLines()
			m.clampDetailScroll()
		}
		m.ensureCursorVisible()
		return m, nil

	case statsLoadedMsg:
		if msg.err == nil {
			m.stats = msg.stats
		}
		return m, nil

	case entriesLoadedMsg:
		if msg.requestID != m.listRequestID {
			return m, nil
		}
		m.loadingMore = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.total = msg.total
		if msg.append {
			m.entries = append(m.entries, msg.entries...)
			return m, nil
		}
		m.entries = msg.entries
		m.cursor, m.scrollOffset = 0, 0
		return m, nil

	case detailLoadedMsg:
		if msg.requestID != m.detailRequestID {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.level = levelDetail
		m.detailEntry = msg.entry
		m.detail = msg.body
		m.detailScroll = 0
		m.detailLines = m.renderDetailLines()
		return m, nil

	case searchResultsMsg:
		if msg.requestID != m.searchRequestID {
			return m, nil
		}
		m.searching = false
		if m.searchCancel != nil {
			m.searchCancel()
			m.searchCancel = nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.listRequestID++ // drop any page load still in flight
		m.source = sourceSearch
		m.searchQuery = msg.query
		m.entries = msg.results.Emails
		m.total = msg.results.TotalCount
		m.cursor, m.scrollOffset = 0, 0
		m.level = levelList
		return m, nil

	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.searchActive {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// startSearch cancels any running search and starts query.
func (m Model) startSearch(query string) (tea.Model, tea.Cmd) {
	if m.searchCancel != nil {
		m.searchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.searchCancel = cancel
	m.searchRequestID++
	m.searching = true
	return m, tea.Batch(m.runSearch(ctx, query), m.spinner.Tick)
}

// cancelSearch abandons the running search; its result will be ignored.
func (m *Model) cancelSearch() {
	if m.searchCancel != nil {
		m.searchCancel()
		m.searchCancel = nil
	}
	m.searchRequestID++
	m.searching = false
}

// showAll resets the list to every message.
func (m Model) showAll() (tea.Model, tea.Cmd) {
	m.source = sourceAll
	m.label = ""
	m.searchQuery = ""
	m.listRequestID++
	return m, m.loadPage(0)
}

func (m Model) filterByLabel(label string) (tea.Model, tea.Cmd) {
	m.source = sourceLabel
	m.label = label
	m.searchQuery = ""
	m.level = levelList
	m.listRequestID++
	return m, m.loadLabel(label)
}

// maybeLoadMore fetches the next page of the full list when the cursor
// nears the end of what is loaded.
func (m *Model) maybeLoadMore() tea.Cmd {
	if m.source != sourceAll || m.loadingMore || len(m.entries) >= m.total {
		return nil
	}
	if m.cursor < len(m.entries)-m.pageSize {
		return nil
	}
	m.loadingMore = true
	return m.loadPage(len(m.entries))
}

func (m *Model) ensureCursorVisible() {
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+m.pageSize {
		m.scrollOffset = m.cursor - m.pageSize + 1
	}
}

func (m *Model) detailPageSize() int {
	// title + header rows are part of detailLines; footer is separate
	return max(m.height-2, 1)
}

func (m *Model) clampDetailScroll() {
	maxScroll := max(len(m.detailLines)-m.detailPageSize(), 0)
	m.detailScroll = min(max(m.detailScroll, 0), maxScroll)
}
