package main

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultBoardSize = 5

	seedModulus = 1_000_000_000
)

// Board is the per-room view of the bank: up to boardSize challenges
// per category, deterministically chosen from the room seed so every
// player sharing a room code sees an identical board.
type Board map[Category][]Challenge

// DeriveSeed maps a room code to its seed. Codes are trimmed and
// lowercased first, so "REHACK-APR29 " and "rehack-apr29" land in the
// same room. Known limitation: distinct codes can collide on a seed;
// the hash is not cryptographically secure and is not meant to be.
func DeriveSeed(code string) uint64 {
	normalized := strings.ToLower(strings.TrimSpace(code))
	return xxhash.Sum64String(normalized) % seedModulus
}

// challengeRank is the sort key for board selection: a stable hash of
// (seed, id, title). Hash collisions fall back to bank order via the
// stable sort in SelectBoard.
func challengeRank(seed uint64, ch Challenge) uint64 {
	var key strings.Builder
	key.WriteString(strconv.FormatUint(seed, 10))
	key.WriteByte(':')
	key.WriteString(ch.ID)
	key.WriteByte(':')
	key.WriteString(ch.Title)

	return xxhash.Sum64String(key.String())
}

// SelectBoard builds the board for a seed. Pure function of its
// inputs: no wall clock, no process-local random state, so repeated
// calls with the same bank and seed yield byte-identical boards.
func SelectBoard(bank Bank, seed uint64, size int) Board {
	board := Board{}

	for _, category := range Categories {
		challenges := bank[category]
		if len(challenges) == 0 {
			board[category] = []Challenge{}
			continue
		}

		picked := make([]Challenge, len(challenges))
		copy(picked, challenges)

		sort.SliceStable(picked, func(i, j int) bool {
			return challengeRank(seed, picked[i]) < challengeRank(seed, picked[j])
		})

		if size < len(picked) {
			picked = picked[:size]
		}

		board[category] = picked
	}

	return board
}

// Find returns the challenge with the given id within a category, or
// nil if it is not on the board.
func (b Board) Find(category Category, id string) *Challenge {
	for i := range b[category] {
		if b[category][i].ID == id {
			return &b[category][i]
		}
	}
	return nil
}
