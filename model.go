package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metcalfc/lectern/internal/reader"
	"github.com/metcalfc/lectern/internal/speech"
	"github.com/metcalfc/lectern/internal/state"
	"go.uber.org/zap"
)

var (
	orpStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	wordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	speakingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	sentenceStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#444400"))

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#665500"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

type mode int

const (
	modeRead mode = iota
	modeSearch
	modeResults
	modeTOC
	modeBookmarks
	modeHighlights
	modeRSVP
)

type (
	tickMsg struct{ gen int }

	sentenceMsg speech.Sentence

	speechDoneMsg struct {
		gen int
		err error
	}
)

type model struct {
	ctx    context.Context
	rd     reader.Reader
	doc    *reader.Document
	store  *state.Store
	hash   string
	player *speech.Player
	log    *zap.Logger
	wpm    int

	mode   mode
	text   string
	status string
	err    error

	input     textinput.Model
	viewport  viewport.Model
	results   []reader.SearchResult
	toc       []reader.TOCLine
	bookmarks  []reader.Bookmark
	highlights []reader.Highlight
	cursor     int

	sentences chan speech.Sentence
	speaking  bool
	speakGen  int
	sentence  *speech.Sentence

	rsvp    *rsvp
	rsvpGen int

	width    int
	height   int
	quitting bool
}

func newModel(ctx context.Context, rd reader.Reader, doc *reader.Document, player *speech.Player, wpm int) model {
	input := textinput.New()
	input.Placeholder = "search"
	input.Prompt = "/"
	input.CharLimit = 200

	m := model{
		ctx:       ctx,
		rd:        rd,
		doc:       doc,
		player:    player,
		log:       zap.NewNop(),
		wpm:       wpm,
		input:     input,
		viewport:  viewport.New(80, 21),
		sentences: make(chan speech.Sentence, 16),
		width:     80,
		height:    24,
	}
	if p, ok := rd.(reader.TOCProvider); ok {
		m.toc = reader.FlattenTOC(p.TOC())
	}

	ch := m.sentences
	player.OnSentence(func(s speech.Sentence) {
		select {
		case ch <- s:
		default:
		}
	})
	m.loadPage()
	return m
}

// withStore attaches persistence for the book identified by hash.
func (m model) withStore(store *state.Store, hash string) model {
	m.store = store
	m.hash = hash
	m.loadHighlights()
	m.render()
	return m
}

func (m model) withLogger(log *zap.Logger) model {
	if log != nil {
		m.log = log
	}
	return m
}

func (m model) Init() tea.Cmd {
	return waitSentence(m.sentences)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.render()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeResults, modeTOC, modeBookmarks:
			return m.updateList(msg)
		case modeRSVP:
			return m.updateRSVP(msg)
		}
		return m.updateRead(msg)

	case sentenceMsg:
		if m.speaking {
			s := speech.Sentence(msg)
			m.sentence = &s
			m.render()
		}
		return m, waitSentence(m.sentences)

	case speechDoneMsg:
		if msg.gen != m.speakGen || !m.speaking {
			return m, nil
		}
		if msg.err != nil {
			m.speaking = false
			m.sentence = nil
			if !errors.Is(msg.err, context.Canceled) {
				m.setError(msg.err)
			}
			m.render()
			return m, nil
		}
		// Page finished: carry on with the next one.
		moved, err := reader.NextPage(m.ctx, m.rd)
		if err != nil || !moved {
			m.speaking = false
			m.sentence = nil
			if err != nil {
				m.setError(err)
			} else {
				m.status = "End of book"
			}
			m.render()
			return m, nil
		}
		m.afterNavigate()
		return m, m.speak()

	case tickMsg:
		if m.mode != modeRSVP || m.rsvp == nil || msg.gen != m.rsvpGen || m.rsvp.paused {
			return m, nil
		}
		if m.rsvp.advance() {
			return m, tick(m.rsvp.delay(), m.rsvpGen)
		}
		moved, err := reader.NextPage(m.ctx, m.rd)
		if err != nil || !moved {
			m.rsvp.paused = true
			if err != nil {
				m.setError(err)
			}
			return m, nil
		}
		m.afterNavigate()
		m.rsvp = newRSVP(m.text, m.rsvp.wpm)
		return m, tick(m.rsvp.delay(), m.rsvpGen)
	}

	return m, nil
}

func (m model) updateRead(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m.quit()

	case "right", "l", "n", "pgdown", " ":
		return m.navigate(func(ctx context.Context) error {
			_, err := reader.NextPage(ctx, m.rd)
			return err
		})

	case "left", "h", "p", "pgup":
		return m.navigate(func(ctx context.Context) error {
			_, err := reader.PrevPage(ctx, m.rd)
			return err
		})

	case "g", "home":
		return m.navigate(func(ctx context.Context) error {
			return m.rd.NavigateToPage(ctx, 1)
		})

	case "G", "end":
		return m.navigate(func(ctx context.Context) error {
			return m.rd.NavigateToPage(ctx, m.rd.TotalPages())
		})

	case "/":
		m.mode = modeSearch
		m.input.SetValue("")
		return m, m.input.Focus()

	case "t":
		if len(m.toc) == 0 {
			m.status = "No table of contents"
			return m, nil
		}
		m.mode = modeTOC
		m.cursor = m.tocCursor()
		return m, nil

	case "b":
		m.addBookmark()
		return m, nil

	case "B":
		m.loadBookmarks()
		if len(m.bookmarks) == 0 {
			m.status = "No bookmarks"
			return m, nil
		}
		m.mode = modeBookmarks
		m.cursor = 0
		return m, nil

	case "m":
		m.addHighlight()
		m.render()
		return m, nil

	case "M":
		m.loadHighlights()
		if len(m.highlights) == 0 {
			m.status = "No highlights"
			return m, nil
		}
		m.mode = modeHighlights
		m.cursor = 0
		return m, nil

	case "s":
		if m.speaking {
			m.stopSpeaking()
			m.status = "Stopped"
			return m, nil
		}
		return m, m.speak()

	case "]":
		if m.speaking {
			m.player.Next()
		}
		return m, nil

	case "[":
		if m.speaking {
			m.player.Previous()
		}
		return m, nil

	case "r":
		m.stopSpeaking()
		m.mode = modeRSVP
		m.rsvp = newRSVP(m.text, m.wpm)
		m.rsvpGen++
		return m, tick(m.rsvp.delay(), m.rsvpGen)

	case "up", "down", "j", "k":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = modeRead
		return m, nil

	case "enter":
		m.input.Blur()
		query := m.input.Value()
		m.results = reader.Search(m.ctx, m.rd, query)
		m.cursor = 0
		if len(m.results) == 0 {
			m.mode = modeRead
			m.status = fmt.Sprintf("No matches for %q", query)
			return m, nil
		}
		m.mode = modeResults
		m.status = fmt.Sprintf("%d matches for %q", len(m.results), query)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.listLen()
	switch msg.String() {
	case "ctrl+c":
		return m.quit()

	case "esc", "q":
		m.mode = modeRead
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}

	case "d":
		if n == 0 {
			break
		}
		switch m.mode {
		case modeBookmarks:
			m.deleteBookmark(m.bookmarks[m.cursor])
		case modeHighlights:
			m.deleteHighlight(m.highlights[m.cursor])
			m.render()
		default:
			return m, nil
		}
		if left := m.listLen(); left == 0 {
			m.mode = modeRead
		} else if m.cursor >= left {
			m.cursor = left - 1
		}

	case "enter":
		if n == 0 {
			m.mode = modeRead
			return m, nil
		}
		pos := m.listTarget(m.cursor)
		m.mode = modeRead
		return m.navigate(func(ctx context.Context) error {
			return m.rd.NavigateToPosition(ctx, pos)
		})
	}
	return m, nil
}

func (m model) updateRSVP(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := m.rsvp
	switch msg.String() {
	case " ":
		r.paused = !r.paused
		if !r.paused {
			m.rsvpGen++
			return m, tick(r.delay(), m.rsvpGen)
		}

	case "+", "=", "up":
		r.faster()

	case "-", "down":
		r.slower()

	case "left":
		r.arrow(time.Now())
		r.prevSentence()

	case "right":
		r.arrow(time.Now())
		r.nextSentence()

	case "esc", "r":
		m.mode = modeRead
		m.rsvpGen++

	case "q", "Q", "ctrl+c":
		return m.quit()
	}
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.stopSpeaking()
	m.savePosition()
	m.quitting = true
	return m, tea.Quit
}

// navigate runs a navigation and refreshes the page. Speech follows the
// reader onto the new page.
func (m model) navigate(fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	before := m.rd.CurrentPage()
	if err := fn(m.ctx); err != nil {
		m.setError(err)
		return m, nil
	}
	m.status = ""
	m.err = nil
	if m.rd.CurrentPage() == before && m.text != "" {
		return m, nil
	}
	m.afterNavigate()
	if m.speaking {
		return m, m.speak()
	}
	return m, nil
}

func (m *model) afterNavigate() {
	m.loadPage()
	m.savePosition()
}

func (m *model) loadPage() {
	m.sentence = nil
	text, err := reader.PageText(m.ctx, m.rd, m.rd.CurrentPage())
	if err != nil {
		m.text = ""
		m.setError(err)
	} else {
		m.text = text
	}
	m.render()
	m.viewport.GotoTop()
}

func (m *model) savePosition() {
	if m.store == nil {
		return
	}
	if err := m.store.SetPosition(m.hash, m.rd.Position()); err != nil {
		m.log.Warn("failed to save position", zap.Error(err))
	}
}

// speak starts reading the current page aloud.
func (m *model) speak() tea.Cmd {
	if m.player.Load(m.text) == 0 {
		m.speaking = false
		m.status = "Nothing to read on this page"
		return nil
	}
	m.speaking = true
	m.sentence = nil
	m.speakGen++
	return play(m.ctx, m.player, m.speakGen)
}

func (m *model) stopSpeaking() {
	if !m.speaking {
		return
	}
	m.speaking = false
	m.sentence = nil
	m.player.Stop()
	m.render()
}

func (m *model) addBookmark() {
	title := fmt.Sprintf("Page %d", m.rd.CurrentPage())
	if ch := m.chapterTitle(); ch != "" {
		title = ch + ", " + title
	}
	bm := reader.AddBookmark(m.rd.Position(), title, firstWords(m.text, 8))
	if m.store != nil {
		stored, err := m.store.AddBookmark(m.hash, bm)
		if err != nil {
			m.setError(err)
			return
		}
		bm = stored
	} else {
		m.bookmarks = append(m.bookmarks, bm)
	}
	m.status = "Bookmarked " + title
}

func (m *model) loadBookmarks() {
	if m.store == nil {
		return
	}
	marks, err := m.store.Bookmarks(m.hash)
	if err != nil {
		m.setError(err)
		return
	}
	m.bookmarks = marks
}

func (m *model) deleteBookmark(bm reader.Bookmark) {
	if m.store != nil {
		if err := m.store.DeleteBookmark(m.hash, bm.ID); err != nil {
			m.setError(err)
			return
		}
	}
	out := m.bookmarks[:0]
	for _, b := range m.bookmarks {
		if b.ID != bm.ID {
			out = append(out, b)
		}
	}
	m.bookmarks = out
}

func (m *model) setError(err error) {
	m.err = err
	m.log.Debug("front end error", zap.Error(err))
}

func (m model) listLen() int {
	switch m.mode {
	case modeResults:
		return len(m.results)
	case modeTOC:
		return len(m.toc)
	case modeBookmarks:
		return len(m.bookmarks)
	case modeHighlights:
		return len(m.highlights)
	}
	return 0
}

func (m model) listTarget(i int) reader.Position {
	switch m.mode {
	case modeResults:
		return m.results[i].Position
	case modeTOC:
		return tocTarget(m.toc[i].TOCEntry)
	case modeBookmarks:
		return m.bookmarks[i].Position
	case modeHighlights:
		return m.highlights[i].Start
	}
	return reader.Position{}
}

// tocTarget prefers the entry's resolved position and falls back to its
// fragment.
func tocTarget(e reader.TOCEntry) reader.Position {
	if !e.Position.IsZero() {
		return e.Position
	}
	if e.FragmentID != "" {
		return reader.AtFragment(e.FragmentID)
	}
	return reader.AtPage(1)
}

// tocCursor selects the last TOC entry starting at or before the current page.
func (m model) tocCursor() int {
	cur := m.rd.CurrentPage()
	best := 0
	for i, line := range m.toc {
		if n, ok := line.Position.Page(); ok && n <= cur {
			best = i
		}
	}
	return best
}

func (m model) chapterTitle() string {
	if id, ok := m.rd.Position().ChapterID(); ok && m.doc != nil {
		for _, ch := range m.doc.Chapters {
			if ch.ID == id {
				return ch.Title
			}
		}
	}
	return ""
}

// remainingMinutes estimates the reading time left from the current page.
func (m model) remainingMinutes() int {
	if m.doc == nil || m.doc.WordCount == 0 {
		return 0
	}
	pct := reader.CalculatePercentage(m.rd.CurrentPage()-1, m.rd.TotalPages())
	left := int(float64(m.doc.WordCount) * (100 - pct) / 100)
	return reader.EstimateReadingTime(left, m.wpm)
}

// render refreshes the viewport content, marking the sentence being spoken
// or, when silent, the highlights on this page.
func (m *model) render() {
	text := m.text
	if s := m.sentence; s != nil && s.StartIndex >= 0 && s.EndIndex <= len(text) && s.StartIndex < s.EndIndex {
		text = text[:s.StartIndex] + sentenceStyle.Render(text[s.StartIndex:s.EndIndex]) + text[s.EndIndex:]
	} else {
		text = markSpans(text, m.pageHighlights())
	}
	width := max(m.viewport.Width-2, 10)
	m.viewport.SetContent(lipgloss.NewStyle().Width(width).Padding(0, 1).Render(text))
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n")

	switch m.mode {
	case modeResults, modeTOC, modeBookmarks, modeHighlights:
		sb.WriteString(m.listView())
	case modeRSVP:
		sb.WriteString(m.rsvpView())
	default:
		sb.WriteString(m.viewport.View())
	}
	sb.WriteString("\n")
	sb.WriteString(m.footer())
	return sb.String()
}

func (m model) header() string {
	title := "Untitled"
	if m.doc != nil && m.doc.Title != "" {
		title = m.doc.Title
	}
	cur, total := m.rd.CurrentPage(), m.rd.TotalPages()
	info := fmt.Sprintf("Page %d/%d | %.0f%% | ~%d min left",
		cur, total, reader.CalculatePercentage(cur, total), m.remainingMinutes())
	if ch := m.chapterTitle(); ch != "" {
		info = ch + " | " + info
	}
	if m.speaking {
		info += speakingStyle.Render(" [SPEAKING]")
	}
	return titleStyle.Render(title) + statusStyle.Render(info)
}

func (m model) footer() string {
	switch {
	case m.mode == modeSearch:
		return m.input.View()
	case m.err != nil:
		return errorStyle.Render("Error: " + m.err.Error())
	case m.status != "":
		return statusStyle.Render(m.status)
	}
	switch m.mode {
	case modeResults, modeTOC:
		return controlsStyle.Render("↑/↓: select  ENTER: go  ESC: back")
	case modeBookmarks, modeHighlights:
		return controlsStyle.Render("↑/↓: select  ENTER: go  D: delete  ESC: back")
	case modeRSVP:
		return controlsStyle.Render("SPACE: pause/play  ↑/↓: speed  ←/→: sentence  ESC: page view  Q: quit")
	}
	return controlsStyle.Render("←/→: page  G/g: last/first  /: search  T: contents  B/b: bookmarks  M/m: highlights  S: speak  R: speed read  Q: quit")
}

func (m model) listView() string {
	var lines []string
	switch m.mode {
	case modeResults:
		for _, r := range m.results {
			line := r.Context
			if r.ChapterTitle != "" {
				line = r.ChapterTitle + ": " + line
			}
			lines = append(lines, line)
		}
	case modeTOC:
		for _, e := range m.toc {
			lines = append(lines, strings.Repeat("  ", e.Level)+e.Label)
		}
	case modeBookmarks:
		for _, b := range m.bookmarks {
			lines = append(lines, b.Title+"  "+b.Note)
		}
	case modeHighlights:
		for _, h := range m.highlights {
			lines = append(lines, h.Note)
		}
	}

	avail := max(m.height-3, 1)
	first := 0
	if m.cursor >= avail {
		first = m.cursor - avail + 1
	}
	var sb strings.Builder
	for i := first; i < len(lines) && i < first+avail; i++ {
		line := truncate(lines[i], m.width-4)
		if i == m.cursor {
			sb.WriteString(cursorStyle.Render("> " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (m model) rsvpView() string {
	r := m.rsvp
	if r == nil || len(r.words) == 0 {
		return "No text to read."
	}
	word := r.word()
	status := fmt.Sprintf("Word %d/%d | %d WPM", r.index+1, len(r.words), r.wpm)
	if r.paused {
		status += pausedStyle.Render(" [PAUSED]")
	}

	avail := max(m.height-4, 1)
	vPad := avail / 2

	var sb strings.Builder
	sb.WriteString(statusStyle.Render(status))
	sb.WriteString(strings.Repeat("\n", vPad+1))
	sb.WriteString(anchorORPText(formatWord(word), word, m.width))
	sb.WriteString(strings.Repeat("\n", avail-vPad))
	return sb.String()
}

func waitSentence(ch <-chan speech.Sentence) tea.Cmd {
	return func() tea.Msg {
		return sentenceMsg(<-ch)
	}
}

func play(ctx context.Context, p *speech.Player, gen int) tea.Cmd {
	return func() tea.Msg {
		err := p.Play(ctx)
		if err == nil {
			err = p.State().Err
		}
		return speechDoneMsg{gen: gen, err: err}
	}
}

func tick(d time.Duration, gen int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		return strings.Join(words[:n], " ") + "…"
	}
	return strings.Join(words, " ")
}

func truncate(s string, width int) string {
	if width <= 1 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
