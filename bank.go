package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Category names are fixed; the bank file may contain other keys, but
// only these five ever reach a board.
type Category string

const (
	CategoryWeb       Category = "web"
	CategoryOsint     Category = "osint"
	CategoryCrypto    Category = "crypto"
	CategoryForensics Category = "forensics"
	CategoryMisc      Category = "misc"
)

var Categories = []Category{
	CategoryWeb,
	CategoryOsint,
	CategoryCrypto,
	CategoryForensics,
	CategoryMisc,
}

var CategoryLabels = map[Category]string{
	CategoryWeb:       "Web",
	CategoryOsint:     "OSINT",
	CategoryCrypto:    "Crypto",
	CategoryForensics: "Forensics",
	CategoryMisc:      "Misc",
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Writeup visibility values
const (
	WriteupAlways     = "always"
	WriteupAfterSolve = "after_solve"
	WriteupNever      = "never"
)

type Writeup struct {
	Visible   string `json:"visible,omitempty"`
	ContentMD string `json:"content_md,omitempty"`
}

// visibleTo reports whether the writeup may be shown to a player,
// given whether they have solved the challenge. An absent or unknown
// visibility defaults to after_solve.
func (w *Writeup) visibleTo(solved bool) bool {
	if w == nil {
		return false
	}
	switch strings.ToLower(w.Visible) {
	case WriteupAlways:
		return true
	case "", WriteupAfterSolve:
		return solved
	default:
		return false
	}
}

// Challenge is immutable once loaded; identity is ID.
type Challenge struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Prompt       string       `json:"prompt"`
	Flag         string       `json:"flag"`
	Points       int          `json:"points"`
	Difficulty   string       `json:"difficulty,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Hint         string       `json:"hint,omitempty"`
	ExternalLink string       `json:"external_link,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Writeup      *Writeup     `json:"writeup,omitempty"`
}

type Bank map[Category][]Challenge

// LoadBank reads the challenge bank once at startup. A missing file
// yields an empty bank so the server can come up before the bank is
// written; a malformed file or duplicate challenge ID is fatal.
func LoadBank(path string) (Bank, error) {
	bank := Bank{}
	for _, c := range Categories {
		bank[c] = []Challenge{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bank, nil
		}
		return nil, err
	}

	var raw map[Category][]Challenge
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	seen := make(map[string]Category)

	for _, c := range Categories {
		challenges, ok := raw[c]
		if !ok {
			continue
		}
		for _, ch := range challenges {
			if ch.ID == "" {
				return nil, fmt.Errorf("challenge %q in category %q has no id", ch.Title, c)
			}
			if prev, dup := seen[ch.ID]; dup {
				return nil, fmt.Errorf("duplicate challenge id %q (categories %q and %q)", ch.ID, prev, c)
			}
			seen[ch.ID] = c
		}
		bank[c] = challenges
	}

	return bank, nil
}

// TileView is the per-challenge payload for board columns. The flag
// never leaves the server; only titles and point values are shown
// until a tile is opened.
type TileView struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Points int    `json:"points"`
	Solved bool   `json:"solved"`
}

// DetailView is the opened-tile payload. Writeup content is included
// only when its visibility rule allows it for this player.
type DetailView struct {
	Category     Category     `json:"category"`
	Label        string       `json:"label"`
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Prompt       string       `json:"prompt"`
	Points       int          `json:"points"`
	Difficulty   string       `json:"difficulty,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Hint         string       `json:"hint,omitempty"`
	ExternalLink string       `json:"external_link,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Writeup      string       `json:"writeup,omitempty"`
	Solved       bool         `json:"solved"`
}

func tileView(ch Challenge, solved bool) TileView {
	return TileView{
		ID:     ch.ID,
		Title:  ch.Title,
		Points: ch.Points,
		Solved: solved,
	}
}

func detailView(category Category, ch Challenge, solved bool) DetailView {
	view := DetailView{
		Category:     category,
		Label:        CategoryLabels[category],
		ID:           ch.ID,
		Title:        ch.Title,
		Prompt:       ch.Prompt,
		Points:       ch.Points,
		Difficulty:   ch.Difficulty,
		Tags:         ch.Tags,
		Hint:         ch.Hint,
		ExternalLink: ch.ExternalLink,
		Attachments:  ch.Attachments,
		Solved:       solved,
	}

	if ch.Writeup.visibleTo(solved) {
		view.Writeup = ch.Writeup.ContentMD
	}

	return view
}
