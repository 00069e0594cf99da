package games

// A facilitator maintains a static bank of CTF challenges, grouped into five fixed categories
// Players share a room code (or scan the QR); the code deterministically seeds the board
// Each category shows up to five challenges, ranked by a stable hash of (seed, id, title)
// Two players with the same code always see the same board, in the same order
// Opening a tile shows the prompt, difficulty, tags, hint, attachments, and external link
// Submitting the canonical flag (trimmed, case-sensitive) credits the points once
// A 3-hour countdown runs per session; at zero, submissions close until the session is reset

// Display formats:
// Five columns of tiles, one per category, title plus point value
// A detail panel below the board for the opened tile, with the flag input

// Implementation details:
// - One hub per room code; the hub owns the board and a session per player cookie
// - All player state (solved set, score, log, clock) is session-scoped; nothing is shared
// - The server clock is authoritative; the browser countdown is display only

// Future upgrade ideas (deliberately not implemented):
// - Shared scoreboard and shared timer across devices would need server-side room state
//   that outlives sessions, plus a sync story; out of scope for a practice board
