package main

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, time.April, 29, 18, 0, 0, 0, time.UTC)

func testBoard() Board {
	bank := Bank{}
	for _, c := range Categories {
		bank[c] = []Challenge{}
	}
	bank[CategoryCrypto] = []Challenge{
		{ID: "c1", Title: "One", Flag: "flag{abc}", Points: 100},
		{ID: "c2", Title: "Two", Flag: "flag{def}", Points: 250},
	}
	bank[CategoryWeb] = []Challenge{
		{ID: "w1", Title: "Web One", Flag: "flag{web}", Points: 50},
	}

	return SelectBoard(bank, 42, defaultBoardSize)
}

func joinedSession(t *testing.T) *PlayerSession {
	t.Helper()

	s := NewPlayerSession()
	if err := s.Join("REHACK-APR29", "Dani", t0, defaultRoomDuration); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return s
}

func TestJoinRequiresCode(t *testing.T) {
	for _, code := range []string{"", "   ", "\t\n"} {
		s := NewPlayerSession()
		if err := s.Join(code, "Dani", t0, defaultRoomDuration); !errors.Is(err, ErrEmptyRoomCode) {
			t.Errorf("Join(%q) = %v, want ErrEmptyRoomCode", code, err)
		}
		if s.Room != nil {
			t.Errorf("Join(%q) mutated state", code)
		}
	}
}

func TestJoinDoesNotRestartClock(t *testing.T) {
	s := joinedSession(t)

	later := t0.Add(30 * time.Minute)
	if err := s.Join("REHACK-APR29", "Dani", later, defaultRoomDuration); err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if !s.Room.StartedAt.Equal(t0) {
		t.Errorf("re-join restarted the clock: StartedAt = %v, want %v", s.Room.StartedAt, t0)
	}

	// Even joining with a different code keeps the running clock.
	if err := s.Join("other-room", "Dani", later, defaultRoomDuration); err != nil {
		t.Fatalf("join other room: %v", err)
	}
	if !s.Room.StartedAt.Equal(t0) {
		t.Errorf("code change restarted the clock: StartedAt = %v, want %v", s.Room.StartedAt, t0)
	}
	if want := DeriveSeed("other-room"); s.Room.Seed != want {
		t.Errorf("seed not rederived: got %d, want %d", s.Room.Seed, want)
	}
}

func TestJoinDefaultsPlayerName(t *testing.T) {
	s := NewPlayerSession()
	if err := s.Join("room", "   ", t0, defaultRoomDuration); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if s.PlayerName != "Player" {
		t.Errorf("PlayerName = %q, want %q", s.PlayerName, "Player")
	}
}

func TestStateTransitions(t *testing.T) {
	s := NewPlayerSession()
	if got := s.State(t0); got != StateNoRoom {
		t.Errorf("fresh session state = %v, want StateNoRoom", got)
	}

	s = joinedSession(t)

	for _, tc := range []struct {
		name string
		now  time.Time
		want SessionState
	}{
		{"at join", t0, StateActive},
		{"mid-room", t0.Add(defaultRoomDuration / 2), StateActive},
		{"one second left", t0.Add(defaultRoomDuration - time.Second), StateActive},
		{"exactly at budget", t0.Add(defaultRoomDuration), StateExpired},
		{"past budget", t0.Add(defaultRoomDuration + time.Hour), StateExpired},
	} {
		if got := s.State(tc.now); got != tc.want {
			t.Errorf("%s: state = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRemainingMonotonicAndClamped(t *testing.T) {
	s := joinedSession(t)

	previous := s.Remaining(t0)
	if previous != defaultRoomDuration {
		t.Errorf("remaining at join = %v, want %v", previous, defaultRoomDuration)
	}

	for _, elapsed := range []time.Duration{
		time.Second,
		time.Minute,
		time.Hour,
		defaultRoomDuration,
		defaultRoomDuration + time.Hour,
	} {
		remaining := s.Remaining(t0.Add(elapsed))
		if remaining > previous {
			t.Errorf("remaining increased: %v after %v", remaining, elapsed)
		}
		if remaining < 0 {
			t.Errorf("remaining negative: %v after %v", remaining, elapsed)
		}
		previous = remaining
	}

	if got := s.Remaining(t0.Add(defaultRoomDuration + time.Hour)); got != 0 {
		t.Errorf("remaining past budget = %v, want 0", got)
	}
}

func TestSelectNotOnBoard(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "ghost"); !errors.Is(err, ErrNotOnBoard) {
		t.Errorf("Select(ghost) = %v, want ErrNotOnBoard", err)
	}
	if s.Selected != nil {
		t.Error("failed select left a selection behind")
	}

	ch, err := s.Select(board, CategoryCrypto, "c1")
	if err != nil {
		t.Fatalf("Select(c1): %v", err)
	}
	if ch.ID != "c1" || s.Selected == nil || s.Selected.ID != "c1" {
		t.Errorf("Select(c1) = %v, selection %v", ch, s.Selected)
	}
}

func TestSubmitCorrectTrimsWhitespace(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	outcome, ch, err := s.Submit(board, "  flag{abc}  ", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome != OutcomeCorrect {
		t.Errorf("outcome = %v, want OutcomeCorrect", outcome)
	}
	if ch == nil || ch.ID != "c1" {
		t.Errorf("challenge = %v, want c1", ch)
	}
	if s.Score != 100 {
		t.Errorf("score = %d, want 100", s.Score)
	}
	if !s.Solved["c1"] {
		t.Error("c1 not in solved set")
	}
	if len(s.Log) != 1 {
		t.Fatalf("log has %d entries, want 1", len(s.Log))
	}
	entry := s.Log[0]
	if entry.Player != "Dani" || entry.ChallengeID != "c1" || entry.Points != 100 {
		t.Errorf("log entry = %+v", entry)
	}
}

func TestSubmitCaseSensitive(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	outcome, _, err := s.Submit(board, "flag{ABC}", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome != OutcomeIncorrect {
		t.Errorf("outcome = %v, want OutcomeIncorrect", outcome)
	}
	if s.Score != 0 || len(s.Solved) != 0 || len(s.Log) != 0 {
		t.Errorf("incorrect guess mutated state: score=%d solved=%d log=%d", s.Score, len(s.Solved), len(s.Log))
	}
}

func TestSubmitEmptyGuess(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	for _, guess := range []string{"", "   ", "\t"} {
		outcome, _, err := s.Submit(board, guess, t0.Add(time.Minute))
		if err != nil {
			t.Fatalf("Submit(%q): %v", guess, err)
		}
		if outcome != OutcomeEmpty {
			t.Errorf("Submit(%q) = %v, want OutcomeEmpty", guess, outcome)
		}
	}

	if s.Score != 0 || len(s.Solved) != 0 || len(s.Log) != 0 {
		t.Error("empty guess mutated state")
	}
}

func TestSubmitIdempotentSolve(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	for i := 0; i < 3; i++ {
		outcome, _, err := s.Submit(board, "flag{abc}", t0.Add(time.Minute))
		if err != nil {
			t.Fatalf("Submit #%d: %v", i+1, err)
		}
		if outcome != OutcomeCorrect {
			t.Errorf("Submit #%d outcome = %v, want OutcomeCorrect", i+1, outcome)
		}
	}

	if s.Score != 100 {
		t.Errorf("score = %d after re-submissions, want 100", s.Score)
	}
	if len(s.Log) != 1 {
		t.Errorf("log has %d entries after re-submissions, want 1", len(s.Log))
	}
}

func TestScoreInvariant(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	submissions := []struct {
		category Category
		id       string
		guess    string
	}{
		{CategoryCrypto, "c1", "flag{wrong}"},
		{CategoryCrypto, "c1", "flag{abc}"},
		{CategoryWeb, "w1", ""},
		{CategoryWeb, "w1", "flag{web}"},
		{CategoryCrypto, "c2", "flag{abc}"},
		{CategoryCrypto, "c1", "flag{abc}"},
		{CategoryCrypto, "c2", "flag{def}"},
	}

	for _, sub := range submissions {
		if _, err := s.Select(board, sub.category, sub.id); err != nil {
			t.Fatalf("Select(%s): %v", sub.id, err)
		}
		if _, _, err := s.Submit(board, sub.guess, t0.Add(time.Minute)); err != nil {
			t.Fatalf("Submit(%s): %v", sub.id, err)
		}

		sum := 0
		for id := range s.Solved {
			found := false
			for _, category := range Categories {
				if ch := board.Find(category, id); ch != nil {
					sum += ch.Points
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("solved id %q not on board", id)
			}
		}
		if s.Score != sum {
			t.Fatalf("score %d != sum of solved points %d", s.Score, sum)
		}
	}

	if s.Score != 400 {
		t.Errorf("final score = %d, want 400", s.Score)
	}
	if len(s.Log) != 3 {
		t.Errorf("log has %d entries, want 3", len(s.Log))
	}
}

func TestSubmitGates(t *testing.T) {
	board := testBoard()

	s := NewPlayerSession()
	if _, _, err := s.Submit(board, "flag{abc}", t0); !errors.Is(err, ErrNotJoined) {
		t.Errorf("submit before join = %v, want ErrNotJoined", err)
	}

	s = joinedSession(t)
	if _, _, err := s.Submit(board, "flag{abc}", t0); !errors.Is(err, ErrNoSelection) {
		t.Errorf("submit without selection = %v, want ErrNoSelection", err)
	}

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	expired := t0.Add(defaultRoomDuration)
	if _, _, err := s.Submit(board, "flag{abc}", expired); !errors.Is(err, ErrRoomExpired) {
		t.Errorf("submit after expiry = %v, want ErrRoomExpired", err)
	}
	if s.Score != 0 || len(s.Solved) != 0 {
		t.Error("gated submission mutated state")
	}
}

func TestSubmitSelectionFellOffBoard(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	// The bank changed underneath: same category, c1 gone.
	rebuilt := Board{}
	for _, category := range Categories {
		rebuilt[category] = []Challenge{}
	}
	rebuilt[CategoryCrypto] = []Challenge{
		{ID: "c9", Title: "Nine", Flag: "flag{nine}", Points: 75},
	}

	if _, _, err := s.Submit(rebuilt, "flag{abc}", t0.Add(time.Minute)); !errors.Is(err, ErrNotOnBoard) {
		t.Errorf("submit for vanished challenge = %v, want ErrNotOnBoard", err)
	}
	if s.Selected != nil {
		t.Error("stale selection not cleared")
	}
	if s.Score != 0 || len(s.Solved) != 0 {
		t.Error("vanished challenge submission mutated state")
	}
}

func TestResetCompleteness(t *testing.T) {
	board := testBoard()
	s := joinedSession(t)

	if _, err := s.Select(board, CategoryCrypto, "c1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, _, err := s.Submit(board, "flag{abc}", t0.Add(time.Minute)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s.Reset()

	if s.Room != nil || s.Selected != nil {
		t.Error("reset left room or selection")
	}
	if s.Score != 0 || len(s.Solved) != 0 || len(s.Log) != 0 {
		t.Errorf("reset incomplete: score=%d solved=%d log=%d", s.Score, len(s.Solved), len(s.Log))
	}
	if got := s.State(t0); got != StateNoRoom {
		t.Errorf("state after reset = %v, want StateNoRoom", got)
	}

	// A fresh join after reset starts a fresh timer.
	restart := t0.Add(time.Hour)
	if err := s.Join("REHACK-APR29", "Dani", restart, defaultRoomDuration); err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if !s.Room.StartedAt.Equal(restart) {
		t.Errorf("StartedAt after reset = %v, want %v", s.Room.StartedAt, restart)
	}
}

func TestFormatClock(t *testing.T) {
	for _, tc := range []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-5 * time.Second, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{61 * time.Second, "00:01:01"},
		{3661 * time.Second, "01:01:01"},
		{defaultRoomDuration, "03:00:00"},
		{500 * time.Millisecond, "00:00:00"},
	} {
		if got := formatClock(tc.in); got != tc.want {
			t.Errorf("formatClock(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
