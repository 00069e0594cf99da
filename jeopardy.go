// Flagbox Jeopardy Board
//
// A facilitator edits a static JSON bank of challenges grouped into five
// categories. Players share a room code; the room URL derives a seed from
// the code, and the seed deterministically picks up to five challenges per
// category, so everyone using the same code sees the identical board.
// Each player's solves, score, and countdown are their own: state lives in
// their session only, with no server-side shared scoreboard.
//
// Features:
// - WebSockets per room: /path/:roomid and /path/:roomid/ws
// - Players identified by cookie (playerID); reconnecting resumes the session
// - Deterministic per-room board selection, stable across processes
// - Flag submission with trim-then-exact-match evaluation, solved-once credit
// - 3-hour room clock (configurable); submissions close at zero until reset
// - Chronological per-session solve log
// - Flags and hidden writeups never serialized to clients
// - Rooms auto-reaped after configurable idle timeout
// - Disconnected players' sessions discarded after a timeout
// - Random 8-char room codes via crypto/rand, with server-side collision check
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"crypto/rand"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string   `json:"type"`               // "join", "reset", "select", "submit", "sync"
	Name     string   `json:"name,omitempty"`     // join
	Category Category `json:"category,omitempty"` // select
	ID       string   `json:"id,omitempty"`       // select
	Guess    string   `json:"guess,omitempty"`    // submit
}

// SessionStateMessage is the authoritative session snapshot: the client
// renders score, clock, and log from this, and only counts the clock
// down locally between snapshots.
type SessionStateMessage struct {
	Type             string          `json:"type"` // "session_state"
	Joined           bool            `json:"joined"`
	RoomCode         string          `json:"room_code,omitempty"`
	PlayerName       string          `json:"player_name,omitempty"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Clock            string          `json:"clock"` // HH:MM:SS
	Expired          bool            `json:"expired"`
	Score            int             `json:"score"`
	Solved           []string        `json:"solved"`
	Log              []SolveLogEntry `json:"log"`
}

type SolveLogEntry struct {
	At          string `json:"at"` // HH:MM:SS local
	Player      string `json:"player"`
	ChallengeID string `json:"challenge_id"`
	Points      int    `json:"points"`
}

// BoardMessage carries the tiles for every category column. Tiles hold
// titles and points only; prompts and the rest arrive via DetailMessage
// once a tile is opened, and flags never leave the server.
type BoardMessage struct {
	Type    string        `json:"type"` // "board"
	Columns []BoardColumn `json:"columns"`
}

type BoardColumn struct {
	Category   Category   `json:"category"`
	Label      string     `json:"label"`
	Challenges []TileView `json:"challenges"`
}

// DetailMessage is sent to a single client when they open a tile.
type DetailMessage struct {
	Type      string     `json:"type"` // "detail"
	Challenge DetailView `json:"challenge"`
}

// ResultMessage reports a submission outcome to the submitting client.
type ResultMessage struct {
	Type        string `json:"type"`    // "result"
	Outcome     string `json:"outcome"` // "correct", "incorrect", "empty"
	ChallengeID string `json:"challenge_id,omitempty"`
	Points      int    `json:"points,omitempty"`
	Message     string `json:"message"`
}

// ErrorMessage is for user-correctable conditions ("room expired",
// "not on board", etc.)
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type joinRequest struct {
	client *Client
	msg    ClientMessage
}

type selectRequest struct {
	client *Client
	msg    ClientMessage
}

type submitRequest struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id      string // room code
	board   Board
	clients map[*Client]bool

	// playerID -> session; survives reconnects until reaped
	sessions map[string]*PlayerSession

	register chan *Client
	unreg    chan *Client
	joins    chan joinRequest
	resets   chan *Client
	selects  chan selectRequest
	submits  chan submitRequest
	syncs    chan *Client

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newHub(bank Bank, roomCode string, boardSize int) *Hub {
	now := time.Now()
	return &Hub{
		id:         roomCode,
		board:      SelectBoard(bank, DeriveSeed(roomCode), boardSize),
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]*PlayerSession),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		joins:      make(chan joinRequest),
		resets:     make(chan *Client),
		selects:    make(chan selectRequest),
		submits:    make(chan submitRequest),
		syncs:      make(chan *Client),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()

			h.clients[c] = true

			sess, ok := h.sessions[c.playerID]
			if !ok {
				sess = NewPlayerSession()
				h.sessions[c.playerID] = sess
			}

			// Snapshot first, so the client knows whether to show the
			// join prompt or resume, then the board.
			h.sendSessionStateLocked(c, sess)
			h.sendBoardLocked(c, sess)

			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			playerID := c.playerID
			h.mu.Unlock()

			if playerID != "" {
				go h.scheduleRemoval(playerID, cfg.playerTimeout)
			}

		case jr := <-h.joins:
			h.handleJoin(cfg, jr)

		case c := <-h.resets:
			h.handleReset(cfg, c)

		case sr := <-h.selects:
			h.handleSelect(sr)

		case sr := <-h.submits:
			h.handleSubmit(cfg, sr)

		case c := <-h.syncs:
			h.mu.Lock()
			if sess, ok := h.sessions[c.playerID]; ok {
				h.sendSessionStateLocked(c, sess)
			}
			h.mu.Unlock()
		}
	}
}

// trySendLocked queues a message for one client, dropping the client
// if its buffer is full. Assumes h.mu is held.
func (h *Hub) trySendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) sendSessionStateLocked(c *Client, sess *PlayerSession) {
	now := time.Now()

	solved := make([]string, 0, len(sess.Solved))
	for id := range sess.Solved {
		solved = append(solved, id)
	}

	entries := make([]SolveLogEntry, 0, len(sess.Log))
	for _, entry := range sess.Log {
		entries = append(entries, SolveLogEntry{
			At:          entry.At.Local().Format("15:04:05"),
			Player:      entry.Player,
			ChallengeID: entry.ChallengeID,
			Points:      entry.Points,
		})
	}

	msg := SessionStateMessage{
		Type:             "session_state",
		Joined:           sess.Room != nil,
		PlayerName:       sess.PlayerName,
		RemainingSeconds: int(sess.Remaining(now) / time.Second),
		Clock:            formatClock(sess.Remaining(now)),
		Expired:          sess.State(now) == StateExpired,
		Score:            sess.Score,
		Solved:           solved,
		Log:              entries,
	}
	if sess.Room != nil {
		msg.RoomCode = sess.Room.Code
	}

	h.trySendLocked(c, msg)
}

func (h *Hub) sendBoardLocked(c *Client, sess *PlayerSession) {
	columns := make([]BoardColumn, 0, len(Categories))

	for _, category := range Categories {
		column := BoardColumn{
			Category:   category,
			Label:      CategoryLabels[category],
			Challenges: make([]TileView, 0, len(h.board[category])),
		}
		for _, ch := range h.board[category] {
			column.Challenges = append(column.Challenges, tileView(ch, sess.Solved[ch.ID]))
		}
		columns = append(columns, column)
	}

	h.trySendLocked(c, BoardMessage{
		Type:    "board",
		Columns: columns,
	})
}

func (h *Hub) sendErrorLocked(c *Client, text string) {
	h.trySendLocked(c, ErrorMessage{
		Type:    "error",
		Message: text,
	})
}

// handleJoin processes "join" messages. The room code is the hub ID
// from the URL; joining again never restarts a running clock.
func (h *Hub) handleJoin(cfg *Config, jr joinRequest) {
	c := jr.client

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	sess, ok := h.sessions[c.playerID]
	if !ok {
		return
	}

	fresh := sess.Room == nil

	if err := sess.Join(h.id, jr.msg.Name, time.Now(), cfg.duration); err != nil {
		h.sendErrorLocked(c, err.Error())
		return
	}

	if fresh {
		logf(cfg, "GAMES: Player %q joined %s", sess.PlayerName, h.id)
	}

	h.sendSessionStateLocked(c, sess)
	h.sendBoardLocked(c, sess)
}

// handleReset wipes the player's session: room clock, selection,
// solved set, score, and log. A full wipe is valid from any state.
func (h *Hub) handleReset(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	sess, ok := h.sessions[c.playerID]
	if !ok {
		return
	}

	sess.Reset()
	logf(cfg, "GAMES: Player reset session in %s", h.id)

	h.sendSessionStateLocked(c, sess)
	h.sendBoardLocked(c, sess)
}

func (h *Hub) handleSelect(sr selectRequest) {
	c := sr.client

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	sess, ok := h.sessions[c.playerID]
	if !ok {
		return
	}

	ch, err := sess.Select(h.board, sr.msg.Category, sr.msg.ID)
	if err != nil {
		h.sendErrorLocked(c, err.Error())
		return
	}

	h.trySendLocked(c, DetailMessage{
		Type:      "detail",
		Challenge: detailView(sr.msg.Category, *ch, sess.Solved[ch.ID]),
	})
}

// handleSubmit evaluates a flag guess for the selected challenge. The
// guess is evaluated first; the client clears its input only after the
// result arrives.
func (h *Hub) handleSubmit(cfg *Config, sr submitRequest) {
	c := sr.client

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	sess, ok := h.sessions[c.playerID]
	if !ok {
		return
	}

	selected := sess.Selected

	outcome, ch, err := sess.Submit(h.board, sr.msg.Guess, time.Now())
	if err != nil {
		h.sendErrorLocked(c, err.Error())
		h.sendSessionStateLocked(c, sess)
		return
	}

	result := ResultMessage{
		Type:    "result",
		Outcome: outcome.String(),
	}

	switch outcome {
	case OutcomeCorrect:
		result.ChallengeID = ch.ID
		result.Points = ch.Points
		result.Message = fmt.Sprintf("Correct! +%d points.", ch.Points)
		logf(cfg, "GAMES: %q solved %q (+%d) in %s", sess.PlayerName, ch.ID, ch.Points, h.id)
	case OutcomeIncorrect:
		result.Message = "Wrong flag."
	default:
		result.Message = "Flag cannot be empty."
	}

	h.trySendLocked(c, result)
	h.sendSessionStateLocked(c, sess)

	if outcome == OutcomeCorrect {
		// Solved marker changed; a solve can also unlock the writeup.
		h.sendBoardLocked(c, sess)
		if selected != nil {
			h.trySendLocked(c, DetailMessage{
				Type:      "detail",
				Challenge: detailView(selected.Category, *ch, true),
			})
		}
	}
}

// scheduleRemoval waits for d, and if no client with this playerID is
// currently connected, discards that player's session, exactly like
// closing the browser tab in a session-scoped app.
func (h *Hub) scheduleRemoval(playerID string, d time.Duration) {
	time.Sleep(d)

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.playerID == playerID {
			return
		}
	}

	if _, ok := h.sessions[playerID]; !ok {
		return
	}

	delete(h.sessions, playerID)
	h.lastActive = time.Now()
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "flagbox_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by room code, so each
// $path/$roomid is its own isolated board.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	bank        Bank
	boardSize   int
	idleTimeout time.Duration
}

func newGameManager(bank Bank, boardSize int, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		bank:        bank,
		boardSize:   boardSize,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, roomCode string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[roomCode]; ok {
		return hub
	}

	hub := newHub(gm.bank, roomCode, gm.boardSize)
	gm.hubs[roomCode] = hub
	go hub.run(cfg)
	return hub
}

// newRoomCode generates a crypto-random room code and ensures it
// doesn't collide with existing rooms.
func (gm *GameManager) newRoomCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[code]
		gm.mu.Unlock()

		if !exists {
			return code
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for code, hub := range gm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(gm.hubs, code)
				go hub.closeAll()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :roomid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomCode := ps.ByName("roomid")
		if roomCode == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		hub := gm.getHub(cfg, roomCode)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: upgrade error: %v", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			h.joins <- joinRequest{
				client: c,
				msg:    msg,
			}
		case "reset":
			h.resets <- c
		case "select":
			h.selects <- selectRequest{
				client: c,
				msg:    msg,
			}
		case "submit":
			h.submits <- submitRequest{
				client: c,
				msg:    msg,
			}
		case "sync":
			h.syncs <- c
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomCode := ps.ByName("roomid")
	if roomCode == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed jeopardy/index.html
var indexHTML []byte

//go:embed jeopardy/app.css
var jeopardyCSS []byte

//go:embed jeopardy/app.js
var jeopardyJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(jeopardyCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(jeopardyJS)
	}
}

// redirectNewRoom handles GET /path by generating a new random room
// code (with server-side collision detection) and redirecting to
// /path/:roomid.
func redirectNewRoom(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomCode := gm.newRoomCode()
		logf(cfg, "GAMES: Created room %s/%s", path, roomCode)
		http.Redirect(w, r, path+"/"+roomCode, http.StatusTemporaryRedirect)
	}
}

// registerJeopardyGame sets up routes so that:
//   - $path                  → redirects to new random room (8-char code)
//   - $path/:roomid          → HTML client
//   - $path/:roomid/ws       → WebSocket for that room
//   - $path/:roomid/qr       → PNG QR code for that room URL
func registerJeopardyGame(cfg *Config, bank Bank, path string, mux *httprouter.Router) {
	gm := newGameManager(bank, cfg.boardSize, cfg.sessionTimeout)

	// Root path → redirect to new random room
	mux.GET(path, redirectNewRoom(cfg, path, gm))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:roomid", getIndexHandler(cfg))

	// Shared assets (no roomid in route)
	mux.GET(cfg.prefix+"/assets/jeopardy/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/jeopardy/app.js", getJsHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:roomid/ws", serveWSForManager(cfg, gm))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)
}
