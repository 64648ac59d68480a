package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancelSearch()
		m.quitting = true
		return m, tea.Quit
	}
	if m.searchActive {
		return m.handleSearchInputKeys(msg)
	}

	switch m.level {
	case levelDetail:
		return m.handleDetailKeys(msg)
	case levelLabels:
		return m.handleLabelKeys(msg)
	default:
		return m.handleListKeys(msg)
	}
}

func (m Model) handleSearchInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchActive = false
		m.searchInput.Blur()
		query := strings.TrimSpace(m.searchInput.Value())
		if query == "" {
			return m.showAll()
		}
		return m.startSearch(query)

	case "esc":
		m.searchActive = false
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) openSearch() (tea.Model, tea.Cmd) {
	m.searchActive = true
	m.searchInput.SetValue(m.searchQuery)
	m.searchInput.CursorEnd()
	return m, m.searchInput.Focus()
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.cancelSearch()
		m.quitting = true
		return m, tea.Quit

	case "/":
		return m.openSearch()

	case "L":
		m.labels = m.box.GetLabels()
		m.labelCursor = 0
		m.level = levelLabels
		return m, nil

	case "esc":
		if m.searching {
			m.cancelSearch()
			return m, nil
		}
		if m.source != sourceAll {
			return m.showAll()
		}
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "pgup", "ctrl+u":
		m.cursor = max(m.cursor-m.pageSize, 0)
	case "pgdown", "ctrl+d":
		m.cursor = max(min(m.cursor+m.pageSize, len(m.entries)-1), 0)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.entries)-1, 0)

	case "enter":
		if len(m.entries) == 0 {
			return m, nil
		}
		m.detailRequestID++
		return m, m.loadDetail(m.entries[m.cursor])

	default:
		return m, nil
	}

	m.ensureCursorVisible()
	return m, m.maybeLoadMore()
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "backspace":
		m.level = levelList
		m.detail = nil
		m.detailLines = nil
		m.err = nil
		return m, nil

	case "up", "k":
		m.detailScroll--
	case "down", "j":
		m.detailScroll++
	case "pgup", "ctrl+u":
		m.detailScroll -= m.detailPageSize()
	case "pgdown", "ctrl+d", " ":
		m.detailScroll += m.detailPageSize()
	case "home", "g":
		m.detailScroll = 0
	case "end", "G":
		m.detailScroll = len(m.detailLines)

	case "n", "right", "l":
		return m.stepDetail(1)
	case "p", "left", "h":
		return m.stepDetail(-1)
	}
	m.clampDetailScroll()
	return m, nil
}

// stepDetail opens the neighbouring entry of the current list.
func (m Model) stepDetail(delta int) (tea.Model, tea.Cmd) {
	next := m.cursor + delta
	if next < 0 || next >= len(m.entries) {
		return m, nil
	}
	m.cursor = next
	m.ensureCursorVisible()
	m.detailRequestID++
	return m, tea.Batch(m.loadDetail(m.entries[next]), m.maybeLoadMore())
}

func (m Model) handleLabelKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.level = levelList
	case "up", "k":
		if m.labelCursor > 0 {
			m.labelCursor--
		}
	case "down", "j":
		if m.labelCursor < len(m.labels)-1 {
			m.labelCursor++
		}
	case "enter":
		if len(m.labels) == 0 {
			return m, nil
		}
		return m.filterByLabel(m.labels[m.labelCursor].Label)
	}
	return m, nil
}
