package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/merritt/lanchat/internal/client"
	"github.com/merritt/lanchat/internal/wire"
)

// eventMsg delivers the next server event into the Bubble Tea loop.
type eventMsg struct {
	event *client.Event
}

// disconnectMsg ends the session when the server goes away.
type disconnectMsg struct {
	err error
}

// ChatModel is the interactive chat screen: a scrollback viewport over an
// input line. All server traffic flows through the client connection; the
// model only renders and translates slash commands.
type ChatModel struct {
	conn *client.Conn

	viewport viewport.Model
	input    textinput.Model
	lines    []string

	serverAddr string
	username   string
	roomID     string
	quitting   bool
	err        error
}

// NewChatModel builds the chat screen over an established connection.
func NewChatModel(conn *client.Conn, serverAddr string) ChatModel {
	input := textinput.New()
	input.Placeholder = "message, or /name /create /join /quit"
	input.Focus()
	input.CharLimit = 512

	width, height := GetTerminalSize()
	vp := viewport.New(width, height-4)

	return ChatModel{
		conn:       conn,
		viewport:   vp,
		input:      input,
		serverAddr: serverAddr,
		username:   "Anonymous",
	}
}

// waitForEvent blocks on the connection's receive loop in a command, the
// Bubble Tea way of pumping an external stream into Update.
func waitForEvent(conn *client.Conn) tea.Cmd {
	return func() tea.Msg {
		ev, err := conn.Receive()
		if err != nil {
			return disconnectMsg{err: err}
		}
		return eventMsg{event: ev}
	}
}

// Init implements tea.Model
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.conn))
}

// Update implements tea.Model
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			_ = m.conn.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			cmd := m.submit(strings.TrimSpace(m.input.Value()))
			m.input.Reset()
			return m, cmd
		}

	case eventMsg:
		m.applyEvent(msg.event)
		return m, waitForEvent(m.conn)

	case disconnectMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit translates one input line into a wire command.
func (m *ChatModel) submit(line string) tea.Cmd {
	if line == "" {
		return nil
	}

	var err error
	switch {
	case line == "/quit":
		m.quitting = true
		_ = m.conn.Close()
		return tea.Quit

	case line == "/create":
		err = m.conn.SendCommand(wire.TypeCreateRoom, nil)

	case strings.HasPrefix(line, "/join "):
		roomID := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
		err = m.conn.SendCommand(wire.TypeJoinRoom, map[string]string{"room_id": roomID})

	case strings.HasPrefix(line, "/name "):
		name := strings.TrimSpace(strings.TrimPrefix(line, "/name "))
		err = m.conn.SendCommand(wire.TypeSetUsername, map[string]string{"username": name})

	case strings.HasPrefix(line, "/"):
		m.appendLine(ErrorStyle.Render("unknown command: " + line))
		return nil

	default:
		if m.roomID == "" {
			m.appendLine(ErrorStyle.Render("join a room first (/create or /join <id>)"))
			return nil
		}
		err = m.conn.SendCommand(wire.TypeMessage, map[string]string{"text": line})
	}

	if err != nil {
		m.appendLine(ErrorStyle.Render("send failed: " + err.Error()))
	}
	return nil
}

// applyEvent renders one server event into the scrollback and tracks the
// bits of session state the header shows.
func (m *ChatModel) applyEvent(ev *client.Event) {
	switch ev.Type {
	case "connected":
		m.appendLine(SystemStyle.Render("connected as " + ev.UserID))
	case "username_set":
		m.username = ev.Username
		m.appendLine(SystemStyle.Render("you are now " + ev.Username))
	case "room_created":
		m.roomID = ev.RoomID
		m.appendLine(SystemStyle.Render("created room " + ev.RoomID + " (share this id)"))
	case "room_joined":
		m.roomID = ev.RoomID
		m.appendLine(SystemStyle.Render("joined room " + ev.RoomID))
	case "user_joined":
		m.appendLine(SystemStyle.Render(ev.Username + " joined"))
	case "user_left":
		m.appendLine(SystemStyle.Render(ev.Username + " left"))
	case "message":
		stamp := time.UnixMilli(ev.Timestamp).Format("15:04:05")
		m.appendLine(fmt.Sprintf("%s %s %s",
			TimestampStyle.Render(stamp),
			UsernameStyle.Render(ev.Username+":"),
			ev.Text,
		))
	case "error":
		m.appendLine(ErrorStyle.Render("server: " + ev.Message))
	default:
		m.appendLine(HintStyle.Render("unhandled event: " + ev.Type))
	}
}

func (m *ChatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshViewport()
}

func (m *ChatModel) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View implements tea.Model
func (m ChatModel) View() string {
	if m.quitting {
		if m.err != nil {
			return ErrorStyle.Render("disconnected: "+m.err.Error()) + "\n"
		}
		return ""
	}

	room := m.roomID
	if room == "" {
		room = "no room"
	}
	header := HeaderStyle.Render(fmt.Sprintf("lanchat %s · %s · %s", m.serverAddr, m.username, room))
	hint := HintStyle.Render("enter to send · /name /create /join <id> · /quit")

	return header + "\n" + m.viewport.View() + "\n" + m.input.View() + "\n" + hint
}

// Run starts the chat TUI over an established connection and blocks until
// the user quits or the server disconnects.
func Run(conn *client.Conn, serverAddr string) error {
	p := tea.NewProgram(NewChatModel(conn, serverAddr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
