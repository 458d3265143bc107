package app

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/votecast/backend/internal/tui/client"
)

func snapshot(seq uint64) client.WSVoteUpdateMsg {
	return client.WSVoteUpdateMsg{
		Seq: seq,
		Units: map[string]client.Unit{
			"F.HUM": {ID: "F.HUM", Name: "Humanities", Position: 2, Eligible: 84},
			"F.ENG": {ID: "F.ENG", Name: "Engineering", Position: 0, Eligible: 123,
				CandidateA: "Alice", CandidateB: "Bob",
				Votes: client.Counters{OptionA: 3, OptionB: 1}},
			"F.BAE": {ID: "F.BAE", Name: "Business", Position: 1, Eligible: 108},
		},
	}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestSnapshotOrdersByPosition(t *testing.T) {
	m := update(New(nil), snapshot(1))

	want := []string{"F.ENG", "F.BAE", "F.HUM"}
	if strings.Join(m.order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", m.order, want)
	}
	if m.seq != 1 {
		t.Errorf("seq = %d, want 1", m.seq)
	}
}

func TestStaleSnapshotIgnored(t *testing.T) {
	m := update(New(nil), snapshot(5))

	old := snapshot(4)
	old.Units = map[string]client.Unit{"X": {ID: "X"}}
	m = update(m, old)

	if m.seq != 5 {
		t.Errorf("seq = %d, want 5", m.seq)
	}
	if _, ok := m.units["X"]; ok {
		t.Error("stale snapshot replaced the tally")
	}
}

func TestSelectionSurvivesSnapshot(t *testing.T) {
	m := update(New(nil), snapshot(1))
	m = update(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.order[m.selectedIdx] != "F.BAE" {
		t.Fatalf("selected = %s, want F.BAE", m.order[m.selectedIdx])
	}

	m = update(m, snapshot(2))
	if m.order[m.selectedIdx] != "F.BAE" {
		t.Errorf("selected after snapshot = %s, want F.BAE", m.order[m.selectedIdx])
	}
}

func TestVoteRequiresAdmin(t *testing.T) {
	m := update(New(nil), snapshot(1))

	if cmd := m.vote(optionA); cmd != nil {
		t.Error("vote produced a command without admin rights")
	}

	m = update(m, client.WSAdminGrantedMsg{})
	if !m.admin {
		t.Fatal("admin not set after grant")
	}
	if cmd := m.vote(optionA); cmd == nil {
		t.Error("vote produced no command with admin rights")
	}

	m = update(m, client.WSDisconnectedMsg{})
	if m.admin {
		t.Error("admin survived a disconnect")
	}
}

func TestVoteWithoutUnits(t *testing.T) {
	m := update(New(nil), client.WSAdminGrantedMsg{})
	if cmd := m.vote(blank); cmd != nil {
		t.Error("vote produced a command with no units loaded")
	}
}

func TestRejectionShownInView(t *testing.T) {
	m := update(New(nil), snapshot(1))
	m.width, m.height = 100, 40
	m = update(m, client.WSVoteRejectedMsg{Payload: client.VoteRejectedPayload{Reason: "denied", UnitID: "F.ENG"}})

	if !strings.Contains(m.View(), "vote rejected (denied) for F.ENG") {
		t.Error("rejection missing from view")
	}
}

func TestShare(t *testing.T) {
	tests := []struct {
		name   string
		votes  client.Counters
		option string
		want   float64
	}{
		{"no votes", client.Counters{}, optionA, 0},
		{"all A", client.Counters{OptionA: 4}, optionA, 100},
		{"one third", client.Counters{OptionA: 1, OptionB: 1, Blank: 1}, blank, 33.3},
		{"two thirds", client.Counters{OptionA: 2, OptionB: 1}, optionA, 66.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := share(tt.votes, tt.option); got != tt.want {
				t.Errorf("share() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		pct        float64
		wantFilled int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{150, 10},
	}
	for _, tt := range tests {
		bar := renderBar(10, tt.pct, optionA)
		if got := strings.Count(bar, "█"); got != tt.wantFilled {
			t.Errorf("renderBar(%v) filled = %d, want %d", tt.pct, got, tt.wantFilled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("renderBar(%v) width = %d, want 10", tt.pct, got)
		}
	}
	if renderBar(0, 50, optionA) != "" {
		t.Error("zero-width bar should be empty")
	}
}

func TestViewRendersUnits(t *testing.T) {
	m := New(nil)
	if m.View() != "Initializing..." {
		t.Errorf("View() before size = %q", m.View())
	}

	m = update(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	if !strings.Contains(m.View(), "No tally data yet") {
		t.Error("empty view missing placeholder")
	}

	m = update(m, snapshot(3))
	view := m.View()
	for _, want := range []string{"Engineering", "Business", "Humanities", "Alice", "Bob", "turnout 4/123", "75.0%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "vote candidate A") {
		t.Error("vote help shown without admin rights")
	}
}
