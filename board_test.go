package main

import (
	"fmt"
	"reflect"
	"testing"
)

func cryptoBank(count int) Bank {
	bank := Bank{}
	for _, c := range Categories {
		bank[c] = []Challenge{}
	}

	challenges := make([]Challenge, 0, count)
	for i := 0; i < count; i++ {
		challenges = append(challenges, Challenge{
			ID:     fmt.Sprintf("c%d", i+1),
			Title:  fmt.Sprintf("Challenge %d", i+1),
			Flag:   fmt.Sprintf("flag{%d}", i+1),
			Points: (i + 1) * 50,
		})
	}
	bank[CategoryCrypto] = challenges

	return bank
}

func TestDeriveSeedNormalization(t *testing.T) {
	variants := []string{
		"REHACK-APR29",
		"rehack-apr29",
		"  Rehack-Apr29  ",
		"\trehack-apr29\n",
	}

	want := DeriveSeed(variants[0])
	for _, code := range variants[1:] {
		if got := DeriveSeed(code); got != want {
			t.Errorf("DeriveSeed(%q) = %d, want %d", code, got, want)
		}
	}

	if want >= seedModulus {
		t.Errorf("seed %d outside modulus %d", want, seedModulus)
	}
}

func TestDeriveSeedDistinctCodes(t *testing.T) {
	if DeriveSeed("alpha") == DeriveSeed("bravo") {
		t.Error("expected different seeds for different codes")
	}
}

func TestSelectBoardDeterminism(t *testing.T) {
	bank := cryptoBank(7)

	first := SelectBoard(bank, 42, defaultBoardSize)
	second := SelectBoard(bank, 42, defaultBoardSize)

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated SelectBoard calls with the same bank and seed disagree")
	}

	if got := len(first[CategoryCrypto]); got != defaultBoardSize {
		t.Errorf("crypto column has %d challenges, want %d", got, defaultBoardSize)
	}
}

func TestSelectBoardSmallCategories(t *testing.T) {
	bank := cryptoBank(3)

	board := SelectBoard(bank, 7, defaultBoardSize)

	if got := len(board[CategoryCrypto]); got != 3 {
		t.Errorf("crypto column has %d challenges, want all 3", got)
	}

	for _, category := range Categories {
		if category == CategoryCrypto {
			continue
		}
		if got := len(board[category]); got != 0 {
			t.Errorf("%s column has %d challenges, want 0", category, got)
		}
	}
}

func TestSelectBoardDoesNotMutateBank(t *testing.T) {
	bank := cryptoBank(7)
	original := make([]Challenge, len(bank[CategoryCrypto]))
	copy(original, bank[CategoryCrypto])

	SelectBoard(bank, 42, defaultBoardSize)

	if !reflect.DeepEqual(bank[CategoryCrypto], original) {
		t.Error("SelectBoard reordered the bank in place")
	}
}

func TestSelectBoardCollisionTieBreak(t *testing.T) {
	// Identical (id, title) pairs rank identically; the stable sort
	// must keep bank order rather than crash or reorder.
	bank := Bank{}
	for _, c := range Categories {
		bank[c] = []Challenge{}
	}
	bank[CategoryMisc] = []Challenge{
		{ID: "twin", Title: "Twin", Points: 100},
		{ID: "twin", Title: "Twin", Points: 200},
	}

	board := SelectBoard(bank, 1, defaultBoardSize)

	got := board[CategoryMisc]
	if len(got) != 2 {
		t.Fatalf("misc column has %d challenges, want 2", len(got))
	}
	if got[0].Points != 100 || got[1].Points != 200 {
		t.Errorf("colliding ranks reordered: got points %d, %d", got[0].Points, got[1].Points)
	}
}

func TestBoardFind(t *testing.T) {
	bank := cryptoBank(2)
	board := SelectBoard(bank, 42, defaultBoardSize)

	if ch := board.Find(CategoryCrypto, "c1"); ch == nil || ch.ID != "c1" {
		t.Errorf("Find(crypto, c1) = %v, want challenge c1", ch)
	}

	if ch := board.Find(CategoryCrypto, "nope"); ch != nil {
		t.Errorf("Find(crypto, nope) = %v, want nil", ch)
	}

	if ch := board.Find(CategoryWeb, "c1"); ch != nil {
		t.Errorf("Find(web, c1) = %v, want nil (wrong category)", ch)
	}
}
