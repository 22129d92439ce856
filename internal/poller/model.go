package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/foodshare/internal/model"
)

const (
	PollInterval   = 5 * time.Second
	requestTimeout = 10 * time.Second

	loadFailed = "Failed to load chat"
	sendFailed = "Failed to send message"
)

// --- Styles ---

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	mutedColor     = lipgloss.Color("#9CA3AF")
	errorColor     = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	ownMessageStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Align(lipgloss.Right)

	otherMessageStyle = lipgloss.NewStyle().
				Align(lipgloss.Left)
)

// --- Messages ---

type chatLoadedMsg struct{ chat *model.Chat }

type chatFailedMsg struct{ err error }

type pollTickMsg time.Time

type sentMsg struct{ msg *model.Message }

type sendFailedMsg struct{ err error }

// Model is the bubbletea model for a single chat screen.
type Model struct {
	api      API
	postID   string
	userID   string
	interval time.Duration

	chat   *model.Chat
	loaded bool
	err    string

	input    textinput.Model
	viewport viewport.Model
}

// NewModel builds the chat screen for postID. userID is optional; when set,
// that user's messages are right-aligned.
func NewModel(api API, postID, userID string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 1000
	ti.Width = 60
	ti.Focus()

	return Model{
		api:      api,
		postID:   postID,
		userID:   userID,
		interval: PollInterval,
		input:    ti,
		viewport: viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchChat(), m.tick(), textinput.Blink)
}

func (m Model) fetchChat() tea.Cmd {
	api, postID := m.api, m.postID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		chat, err := api.GetChat(ctx, postID)
		if err != nil {
			return chatFailedMsg{err: err}
		}
		return chatLoadedMsg{chat: chat}
	}
}

func (m Model) sendMessage(chatID, content string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		msg, err := api.SendMessage(ctx, chatID, content)
		if err != nil {
			return sendFailedMsg{err: err}
		}
		return sentMsg{msg: msg}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		// header, blank line, input, help line
		m.viewport.Height = max(msg.Height-5, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refreshViewport()

	case pollTickMsg:
		// Keep ticking regardless of how the previous fetch went.
		return m, tea.Batch(m.fetchChat(), m.tick())

	case chatLoadedMsg:
		m.chat = msg.chat
		m.loaded = true
		m.err = ""
		m.refreshViewport()
		return m, nil

	case chatFailedMsg:
		m.err = loadFailed
		return m, nil

	case sentMsg:
		m.input.Reset()
		return m, m.fetchChat()

	case sendFailedMsg:
		m.err = sendFailed
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	content := m.input.Value()
	if strings.TrimSpace(content) == "" || m.chat == nil {
		return m, nil
	}
	// The input is cleared on sentMsg so a failed send keeps the text.
	return m, m.sendMessage(m.chat.ID, content)
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	if m.chat == nil {
		return ""
	}

	width := m.viewport.Width
	var b strings.Builder
	for _, msg := range m.chat.Messages {
		line := fmt.Sprintf("%s %s: %s",
			mutedStyle.Render(msg.CreatedAt.Local().Format("15:04")),
			m.senderName(msg.SenderID),
			msg.Content,
		)

		style := otherMessageStyle
		if m.userID != "" && msg.SenderID == m.userID {
			style = ownMessageStyle
		}
		b.WriteString(style.Width(width).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) senderName(id string) string {
	if m.userID != "" && id == m.userID {
		return "You"
	}
	switch id {
	case m.chat.Donor.ID:
		if m.chat.Donor.Name != "" {
			return m.chat.Donor.Name
		}
	case m.chat.Receiver.ID:
		if m.chat.Receiver.Name != "" {
			return m.chat.Receiver.Name
		}
	}
	return id
}

// --- View ---

func (m Model) View() string {
	if m.err != "" {
		return errorStyle.Render(m.err) + "\n\n" + mutedStyle.Render("Press esc to quit.")
	}
	if !m.loaded {
		return "Loading chat..."
	}
	if m.chat == nil {
		return "No chat data available"
	}

	header := titleStyle.Render(fmt.Sprintf("%s ↔ %s", m.chat.Donor.Name, m.chat.Receiver.Name))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		"",
		m.input.View(),
		mutedStyle.Render("enter: send • pgup/pgdown: scroll • esc: quit"),
	)
}
