// authsync TUI - A terminal status client for shared session state.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/authsync/internal/config"
	"github.com/jeranaias/authsync/internal/session"
	"github.com/jeranaias/authsync/internal/store"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async session callbacks
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "", "tui":
		runTUI()
	case "status":
		runStatus()
	case "version":
		fmt.Printf("authsync %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: authsync [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  tui       Interactive session status view (default)")
	fmt.Println("  status    Print the current session state and exit")
	fmt.Println("  version   Print version information")
	fmt.Println("  help      Show this help")
}

// =============================================================================
// BACKEND WIRING
// =============================================================================

// openBackend builds the shared store from configuration. When watch is
// true the returned Notifier delivers foreign mutations; otherwise it is
// nil and cleanup alone releases the backend.
func openBackend(cfg config.Config, watch bool) (store.Store, store.Notifier, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		if !watch {
			return db, nil, func() { db.Close() }, nil
		}
		polled := store.NewPolledStore(db, cfg.PollInterval())
		// The session manager closes the polled wrapper; the database
		// handle underneath still needs its own close.
		return polled, polled, func() { db.Close() }, nil

	default:
		fs, err := store.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open file store: %w", err)
		}
		if !watch {
			return fs, nil, func() { fs.Close() }, nil
		}
		if err := fs.Watch(); err != nil {
			fs.Close()
			return nil, nil, nil, fmt.Errorf("failed to watch session directory: %w", err)
		}
		return fs, fs, func() {}, nil
	}
}

func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		return config.Default()
	}
	return cfg
}

// =============================================================================
// STATUS COMMAND
// =============================================================================

// runStatus performs a one-shot restore and prints the result.
func runStatus() {
	cfg := loadConfig()

	st, _, cleanup, err := openBackend(cfg, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	mgr := session.NewManager(session.Config{
		Store:         st,
		CheckInterval: cfg.CheckInterval(),
	})
	mgr.Start()
	<-mgr.Ready()
	snap := mgr.CurrentSnapshot()
	mgr.Close()

	fmt.Printf("Backend:  %s\n", cfg.Storage.Backend)
	fmt.Printf("State:    %s\n", snap.State)
	if snap.State == session.StateActive {
		fmt.Printf("User:     %s %s <%s>\n", snap.User.Name, snap.User.SecondName, snap.User.Email)
		fmt.Printf("Role:     %s\n", snap.User.Role)
		if len(snap.User.Interests) > 0 {
			fmt.Printf("Interests: %s\n", strings.Join(snap.User.Interests, ", "))
		}
	}
}

// =============================================================================
// TUI
// =============================================================================

func runTUI() {
	cfg := loadConfig()

	st, notifier, cleanup, err := openBackend(cfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	mgr := session.NewManager(session.Config{
		Store:         st,
		Notifier:      notifier,
		CheckInterval: cfg.CheckInterval(),
		OnChange: func(snap session.Snapshot) {
			programMu.Lock()
			p := programRef
			programMu.Unlock()
			if p != nil {
				p.Send(sessionChangedMsg{snapshot: snap})
			}
		},
	})
	defer mgr.Close()

	m := newModel(mgr, cfg)

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Store program reference for async session callbacks
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	mgr.Start()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running authsync: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// APPLICATION MODEL
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// sessionChangedMsg delivers a session transition from the manager's
// OnChange callback.
type sessionChangedMsg struct {
	snapshot session.Snapshot
}

// readyMsg signals that the initial restore has completed.
type readyMsg struct {
	snapshot session.Snapshot
}

// loginResultMsg reports the outcome of a demo login.
type loginResultMsg struct {
	err error
}

// Model is the main Bubble Tea model for the status client.
type Model struct {
	mgr     *session.Manager
	backend string

	spinner  spinner.Model
	ready    bool
	snapshot session.Snapshot
	notice   string

	width  int
	height int
}

func newModel(mgr *session.Manager, cfg config.Config) *Model {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
	)

	return &Model{
		mgr:     mgr,
		backend: cfg.Storage.Backend,
		spinner: sp,
	}
}

// Init starts the spinner and waits for the initial restore.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitReady())
}

// waitReady returns a command that blocks until the manager has
// finished its initial restore.
func (m *Model) waitReady() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		<-mgr.Ready()
		return readyMsg{snapshot: mgr.CurrentSnapshot()}
	}
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case readyMsg:
		m.ready = true
		m.snapshot = msg.snapshot
		return m, nil

	case sessionChangedMsg:
		m.snapshot = msg.snapshot
		m.notice = ""
		return m, nil

	case loginResultMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Login failed: %v", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "l":
		if !m.ready {
			return m, nil
		}
		mgr := m.mgr
		return m, func() tea.Msg {
			return loginResultMsg{err: mgr.Login(demoUser(), demoToken(time.Hour))}
		}

	case "o":
		if !m.ready {
			return m, nil
		}
		mgr := m.mgr
		return m, func() tea.Msg {
			mgr.Logout()
			return nil
		}
	}

	return m, nil
}

// View renders the current session state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("authsync"))
	b.WriteString("\n")

	if !m.ready {
		b.WriteString(fmt.Sprintf("%s Restoring session...\n", m.spinner.View()))
		return b.String()
	}

	b.WriteString(labelStyle.Render("Backend") + m.backend + "\n")

	switch m.snapshot.State {
	case session.StateActive:
		u := m.snapshot.User
		b.WriteString(labelStyle.Render("State") + activeStyle.Render("active session") + "\n")
		b.WriteString(labelStyle.Render("User") + fmt.Sprintf("%s %s <%s>", u.Name, u.SecondName, u.Email) + "\n")
		b.WriteString(labelStyle.Render("Role") + u.Role + "\n")
		if len(u.Interests) > 0 {
			b.WriteString(labelStyle.Render("Interests") + strings.Join(u.Interests, ", ") + "\n")
		}
	default:
		b.WriteString(labelStyle.Render("State") + idleStyle.Render("no session") + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}

	b.WriteString(helpStyle.Render("l: login   o: logout   q: quit"))
	b.WriteString("\n")

	return b.String()
}

// =============================================================================
// DEMO CREDENTIALS
// =============================================================================

// demoUser returns the identity used by the demo login.
func demoUser() session.User {
	return session.User{
		UserID:     "demo",
		Name:       "Demo",
		SecondName: "User",
		Email:      "demo@example.com",
		Role:       "member",
		Interests:  []string{"sessions", "terminals"},
	}
}

// demoToken fabricates an unsigned JWT that expires after ttl. The
// manager only inspects the payload's exp claim, so a placeholder
// header and signature are enough for local demos.
func demoToken(ttl time.Duration) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload, _ := json.Marshal(map[string]int64{
		"exp": time.Now().Add(ttl).Unix(),
	})

	return strings.Join([]string{
		header,
		base64.RawURLEncoding.EncodeToString(payload),
		base64.RawURLEncoding.EncodeToString([]byte("demo")),
	}, ".")
}
