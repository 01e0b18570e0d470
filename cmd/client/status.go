package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/manager"
	"github.com/The-Promised-Neverland/kiro/internal/session"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	waitColor = color.New(color.FgYellow)
	deadColor = color.New(color.FgRed)
	nameColor = color.New(color.Bold)
)

func stateColor(s session.State) *color.Color {
	switch s {
	case session.StateConnected:
		return okColor
	case session.StateConnecting:
		return waitColor
	default:
		return deadColor
	}
}

// statusLine renders one node. Values the node has not reported yet are
// shown as "-".
func statusLine(m *manager.Manager, s *session.Session) string {
	id := s.Identity.ID
	state := s.State()

	mem, cpu, up, osDesc := "-", "-", "-", "-"
	if last, ok := m.Memory().Get(id).Last(); ok {
		mem = fmt.Sprintf("%.1f%%", last.Value)
	}
	if last, ok := m.CPU().Get(id).Last(); ok {
		cpu = fmt.Sprintf("%.1f%%", last.Value)
	}
	if snap, ok := s.Latest(); ok {
		up = (time.Duration(snap.Uptime) * time.Second).String()
		osDesc = snap.OS + " / " + snap.Kernel
	}

	parts := []string{
		nameColor.Sprintf("%-12s", s.Identity.Hostname),
		s.Identity.Address,
		stateColor(state).Sprint(state.String()),
		"mem " + mem,
		"cpu " + cpu,
		fmt.Sprintf("samples %d", m.CPU().Get(id).Len()),
		"up " + up,
		osDesc,
	}
	if err := s.Err(); err != nil && state == session.StateTerminated {
		parts = append(parts, deadColor.Sprint(err.Error()))
	}
	return strings.Join(parts, "  ")
}

func printStatus(w io.Writer, m *manager.Manager) {
	for _, s := range m.Sessions() {
		fmt.Fprintln(w, statusLine(m, s))
	}
}
