package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultRoomDuration = 3 * time.Hour

// SessionState is the room lifecycle: no room joined yet, joined and
// running, or joined with the clock run out. Reset returns any state
// to StateNoRoom.
type SessionState int

const (
	StateNoRoom SessionState = iota
	StateActive
	StateExpired
)

// Outcome is the result of evaluating a flag submission.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeIncorrect
	OutcomeCorrect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	default:
		return "empty"
	}
}

var (
	ErrEmptyRoomCode = errors.New("room code is required")
	ErrNotJoined     = errors.New("join a room first")
	ErrRoomExpired   = errors.New("time is up; reset the room to play again")
	ErrNoSelection   = errors.New("no challenge selected")
	ErrNotOnBoard    = errors.New("that challenge is not on the current board anymore")
)

type Room struct {
	Code      string
	Seed      uint64
	StartedAt time.Time
	Duration  time.Duration
}

type Selection struct {
	Category Category
	ID       string
}

type SolveEntry struct {
	At          time.Time
	Player      string
	ChallengeID string
	Points      int
}

// PlayerSession holds one player's state for one room. It is owned by
// the calling context (one per connection cookie), never shared across
// players; the hub serializes all access to it.
type PlayerSession struct {
	PlayerName string
	Room       *Room
	Selected   *Selection
	Solved     map[string]bool
	Score      int
	Log        []SolveEntry
}

func NewPlayerSession() *PlayerSession {
	return &PlayerSession{
		Solved: make(map[string]bool),
	}
}

// Join enters a room. The clock starts on first join only: re-joining,
// with the same code or a new one, never restarts a running timer.
// Only Reset clears it.
func (s *PlayerSession) Join(code, name string, now time.Time, duration time.Duration) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyRoomCode
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	s.PlayerName = name

	startedAt := now
	if s.Room != nil && !s.Room.StartedAt.IsZero() {
		startedAt = s.Room.StartedAt
	}

	s.Room = &Room{
		Code:      code,
		Seed:      DeriveSeed(code),
		StartedAt: startedAt,
		Duration:  duration,
	}

	return nil
}

// Reset wipes everything: room, selection, solved set, score, and log.
// A subsequent Join starts a fresh timer.
func (s *PlayerSession) Reset() {
	s.Room = nil
	s.Selected = nil
	s.Solved = make(map[string]bool)
	s.Score = 0
	s.Log = nil
}

func (s *PlayerSession) State(now time.Time) SessionState {
	switch {
	case s.Room == nil:
		return StateNoRoom
	case now.Sub(s.Room.StartedAt) >= s.Room.Duration:
		return StateExpired
	default:
		return StateActive
	}
}

// Remaining reports time left on the room clock, clamped at zero. It
// is non-increasing over real time for a fixed session.
func (s *PlayerSession) Remaining(now time.Time) time.Duration {
	if s.Room == nil {
		return 0
	}
	remaining := s.Room.Duration - now.Sub(s.Room.StartedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Select records the player's open tile. Selecting a challenge that is
// not on the current board (the bank changed underneath) is non-fatal:
// the selection is cleared and the caller prompts for another tile.
// Selection stays allowed after expiry; only submissions close.
func (s *PlayerSession) Select(board Board, category Category, id string) (*Challenge, error) {
	if s.Room == nil {
		return nil, ErrNotJoined
	}

	ch := board.Find(category, id)
	if ch == nil {
		s.Selected = nil
		return nil, ErrNotOnBoard
	}

	s.Selected = &Selection{
		Category: category,
		ID:       id,
	}

	return ch, nil
}

// Submit evaluates a flag guess against the selected challenge.
//
// The guess and the canonical flag are both trimmed of surrounding
// whitespace; comparison is exact and case-sensitive after that. A
// correct guess credits the challenge once: the client disables the
// input for solved tiles, and re-submission here still returns
// OutcomeCorrect without touching score, solved set, or log.
func (s *PlayerSession) Submit(board Board, guess string, now time.Time) (Outcome, *Challenge, error) {
	switch s.State(now) {
	case StateNoRoom:
		return OutcomeEmpty, nil, ErrNotJoined
	case StateExpired:
		return OutcomeEmpty, nil, ErrRoomExpired
	}

	if s.Selected == nil {
		return OutcomeEmpty, nil, ErrNoSelection
	}

	ch := board.Find(s.Selected.Category, s.Selected.ID)
	if ch == nil {
		s.Selected = nil
		return OutcomeEmpty, nil, ErrNotOnBoard
	}

	got := strings.TrimSpace(guess)
	if got == "" {
		return OutcomeEmpty, ch, nil
	}

	if got != strings.TrimSpace(ch.Flag) {
		return OutcomeIncorrect, ch, nil
	}

	if !s.Solved[ch.ID] {
		s.Solved[ch.ID] = true
		s.Score += ch.Points
		s.Log = append(s.Log, SolveEntry{
			At:          now,
			Player:      s.PlayerName,
			ChallengeID: ch.ID,
			Points:      ch.Points,
		})
	}

	return OutcomeCorrect, ch, nil
}

// formatClock renders a countdown as zero-padded HH:MM:SS, clamped at
// 00:00:00.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
