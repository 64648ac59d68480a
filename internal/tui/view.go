package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wesm/mboxbrowser/internal/mime"
	"github.com/wesm/mboxbrowser/internal/textutil"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"}).
			Bold(true)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 || m.height <= 0 {
		return "Loading..."
	}

	var body string
	switch m.level {
	case levelDetail:
		body = m.detailView()
	case levelLabels:
		body = m.labelsView()
	default:
		body = m.listView()
	}
	return m.titleBar() + "\n" + body + "\n" + m.footerView()
}

func (m Model) titleBar() string {
	title := "mboxbrowser"
	if m.version != "" && m.version != "dev" {
		title = fmt.Sprintf("mboxbrowser [%s]", m.version)
	}
	if m.stats != nil {
		title += " - " + m.stats.Path
	}

	var status string
	switch m.source {
	case sourceLabel:
		status = fmt.Sprintf("label: %s (%d)", m.label, m.total)
	case sourceSearch:
		status = fmt.Sprintf("search: %s (%d of %d)", m.searchQuery, len(m.entries), m.total)
	default:
		status = fmt.Sprintf("%d messages", m.total)
		if m.stats != nil {
			status += fmt.Sprintf(", %d with attachments", m.stats.TotalWithAttachments)
		}
	}

	line := title
	if gap := m.width - 2 - lipgloss.Width(title) - lipgloss.Width(status); gap > 1 {
		line += strings.Repeat(" ", gap) + status
	} else {
		line += "  " + status
	}
	return titleBarStyle.Render(padRight(line, m.width-2))
}

// fillLines pads content to exactly n screen lines.
func (m Model) fillLines(lines []string, n int) string {
	blank := normalRowStyle.Render(strings.Repeat(" ", m.width))
	for len(lines) < n {
		lines = append(lines, blank)
	}
	return strings.Join(lines[:n], "\n")
}

func (m Model) listView() string {
	rows := m.pageSize + 2 // header + separator
	if m.err != nil {
		return m.fillLines([]string{errorStyle.Render(padRight("Error: "+m.err.Error(), m.width))}, rows)
	}
	if len(m.entries) == 0 {
		msg := "No messages"
		if m.searching {
			msg = m.spinner.View() + " Searching..."
		}
		return m.fillLines([]string{normalRowStyle.Render(padRight(msg, m.width))}, rows)
	}

	dateWidth, fromWidth := 16, 25
	subjectWidth := max(m.width-dateWidth-fromWidth-8, 20)

	lines := make([]string, 0, rows)
	header := fmt.Sprintf("   %s  %s  %s  %s",
		textutil.PadRight("Date", dateWidth),
		textutil.PadRight("From", fromWidth),
		textutil.PadRight("Subject", subjectWidth),
		"@")
	lines = append(lines,
		tableHeaderStyle.Render(padRight(header, m.width)),
		separatorStyle.Render(strings.Repeat("─", m.width)))

	end := min(m.scrollOffset+m.pageSize, len(m.entries))
	for i := m.scrollOffset; i < end; i++ {
		e := m.entries[i]
		indicator := "   "
		if i == m.cursor {
			indicator = "▶  "
		}
		attach := " "
		if e.HasAttachments {
			attach = "@"
		}
		subject := textutil.FitWidth(textutil.SingleLine(e.Subject), subjectWidth)
		row := fmt.Sprintf("%s%s  %s  %s  %s",
			indicator,
			textutil.PadRight(shortDate(e.Date), dateWidth),
			textutil.PadRight(textutil.FitWidth(sender(e), fromWidth), fromWidth),
			highlightTerms(subject, m.searchQuery)+strings.Repeat(" ", max(subjectWidth-lipgloss.Width(subject), 0)),
			attach)

		style := normalRowStyle
		if i == m.cursor {
			style = cursorRowStyle
		}
		lines = append(lines, style.Render(padRight(row, m.width)))
	}
	return m.fillLines(lines, rows)
}

// renderDetailLines lays out the open message as screen lines.
func (m Model) renderDetailLines() []string {
	if m.detail == nil {
		return nil
	}
	e := m.detailEntry
	width := max(m.width-2, 20)

	var lines []string
	lines = append(lines, wrapText("Subject: "+e.Subject, width)...)
	lines = append(lines, "")
	lines = append(lines, "Date: "+e.Date)
	lines = append(lines, wrapText("From: "+formatAddress(e.FromName, e.FromAddress), width)...)
	if len(e.To) > 0 {
		lines = append(lines, wrapText("To: "+formatAddresses(e.To), width)...)
	}
	if len(e.Cc) > 0 {
		lines = append(lines, wrapText("Cc: "+formatAddresses(e.Cc), width)...)
	}
	if len(e.Labels) > 0 {
		lines = append(lines, "Labels: "+strings.Join(e.Labels, ", "))
	}

	if atts := m.detail.Attachments; len(atts) > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Attachments (%d):", len(atts)))
		for _, a := range atts {
			lines = append(lines, fmt.Sprintf("  [%d] %s (%s, %s)", a.PartIndex, a.Filename, a.ContentType, textutil.FormatBytes(a.Size)))
		}
	}

	lines = append(lines, "", strings.Repeat("─", min(width, 80)), "")

	var text string
	switch {
	case m.detail.Text != nil && strings.TrimSpace(*m.detail.Text) != "":
		text = *m.detail.Text
	case m.detail.HTML != nil:
		text = mime.StripHTML(*m.detail.HTML)
	default:
		text = "(No text content)"
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "")
	for _, l := range wrapText(text, width) {
		lines = append(lines, highlightTerms(l, m.searchQuery))
	}
	return lines
}

func (m Model) detailView() string {
	n := m.detailPageSize()
	if m.err != nil {
		return m.fillLines([]string{errorStyle.Render(padRight("Error loading message: "+m.err.Error(), m.width))}, n)
	}
	end := min(m.detailScroll+n, len(m.detailLines))
	lines := make([]string, 0, n)
	for _, l := range m.detailLines[m.detailScroll:end] {
		lines = append(lines, normalRowStyle.Render(padRight(" "+l, m.width)))
	}
	return m.fillLines(lines, n)
}

func (m Model) labelsView() string {
	rows := m.pageSize + 2
	if len(m.labels) == 0 {
		return m.fillLines([]string{normalRowStyle.Render(padRight("No labels", m.width))}, rows)
	}

	lines := []string{
		tableHeaderStyle.Render(padRight(fmt.Sprintf("   %s  %s", textutil.PadRight("Label", 40), "Messages"), m.width)),
		separatorStyle.Render(strings.Repeat("─", m.width)),
	}
	offset := max(m.labelCursor-m.pageSize+1, 0)
	end := min(offset+m.pageSize, len(m.labels))
	for i := offset; i < end; i++ {
		l := m.labels[i]
		indicator, style := "   ", normalRowStyle
		if i == m.labelCursor {
			indicator, style = "▶  ", cursorRowStyle
		}
		row := fmt.Sprintf("%s%s  %8d", indicator, textutil.PadRight(textutil.FitWidth(l.Label, 40), 40), l.Count)
		lines = append(lines, style.Render(padRight(row, m.width)))
	}
	return m.fillLines(lines, rows)
}

func (m Model) footerView() string {
	var text string
	switch {
	case m.searchActive:
		text = "Search: " + m.searchInput.View()
	case m.searching:
		text = m.spinner.View() + " Searching... esc: cancel"
	case m.level == levelDetail:
		pos := ""
		if len(m.detailLines) > 0 {
			pos = fmt.Sprintf("  %d/%d", min(m.detailScroll+m.detailPageSize(), len(m.detailLines)), len(m.detailLines))
		}
		text = "↑/↓ scroll  n/p next/prev  esc back  q quit" + pos
	case m.level == levelLabels:
		text = "↑/↓ move  enter filter  esc back"
	default:
		text = "↑/↓ move  enter open  / search  L labels  q quit"
		if m.source != sourceAll {
			text = "↑/↓ move  enter open  / search  esc all messages  q quit"
		}
		if len(m.entries) > 0 {
			text += fmt.Sprintf("  %d/%d", m.cursor+1, m.total)
		}
	}
	return footerStyle.Render(padRight(text, m.width-2))
}
