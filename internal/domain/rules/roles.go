// Package rules contains the pure calculation logic for game mechanics:
// role distribution, speed presets and win arithmetic.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	mathrand "math/rand"

	"github.com/phantom-night/server/internal/domain/player"
)

// MinPlayers and MaxPlayers bound the lobby size.
const (
	MinPlayers = 5
	MaxPlayers = 15
)

var ErrRosterSize = errors.New("roster size out of range")

// Distribution is the role breakdown for a roster.
type Distribution struct {
	Phantoms  int
	Oracles   int
	Guardians int
	Fanatics  int
	Debuggers int
	Citizens  int
}

// Distribute computes the role counts for a roster of size n.
// The debugger is a human-relevant mechanic (it guesses human vs agent),
// so it is only dealt when at least one human is playing.
// Invariant: phantom-aligned count (phantoms + fanatic) stays strictly
// below the citizen-aligned count.
func Distribute(n int, hasHuman bool) (Distribution, error) {
	if n < MinPlayers || n > MaxPlayers {
		return Distribution{}, ErrRosterSize
	}

	d := Distribution{
		Phantoms: n / 4,
		Oracles:  1, // always fits at n >= 5
	}
	if d.Phantoms < 1 {
		d.Phantoms = 1
	}
	if n >= 6 {
		d.Guardians = 1
	}
	if n >= 8 {
		d.Fanatics = 1
	}
	if n >= 7 && hasHuman {
		d.Debuggers = 1
	}

	// Shrink the phantom pack until the alignment inequality holds.
	for d.Phantoms > 1 && d.Phantoms+d.Fanatics >= n-(d.Phantoms+d.Fanatics) {
		d.Phantoms--
	}

	d.Citizens = n - d.Phantoms - d.Oracles - d.Guardians - d.Fanatics - d.Debuggers
	return d, nil
}

// PhantomAlignedCount returns the phantom-side headcount of a distribution.
func (d Distribution) PhantomAlignedCount() int {
	return d.Phantoms + d.Fanatics
}

// CitizenAlignedCount returns the citizen-side headcount of a distribution.
func (d Distribution) CitizenAlignedCount() int {
	return d.Oracles + d.Guardians + d.Debuggers + d.Citizens
}

// Deck builds the shuffled role list for a roster. The shuffle is seeded
// from crypto/rand so clients cannot predict the deal.
func Deck(d Distribution) []player.Role {
	deck := make([]player.Role, 0, d.Phantoms+d.Oracles+d.Guardians+d.Fanatics+d.Debuggers+d.Citizens)
	for i := 0; i < d.Phantoms; i++ {
		deck = append(deck, player.RolePhantom)
	}
	for i := 0; i < d.Oracles; i++ {
		deck = append(deck, player.RoleOracle)
	}
	for i := 0; i < d.Guardians; i++ {
		deck = append(deck, player.RoleGuardian)
	}
	for i := 0; i < d.Fanatics; i++ {
		deck = append(deck, player.RoleFanatic)
	}
	for i := 0; i < d.Debuggers; i++ {
		deck = append(deck, player.RoleDebugger)
	}
	for i := 0; i < d.Citizens; i++ {
		deck = append(deck, player.RoleCitizen)
	}

	rng := mathrand.New(mathrand.NewSource(cryptoSeed()))
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Assign deals one role to each roster member in place.
// Returns the distribution used for the deal.
func Assign(roster []*player.Player) (Distribution, error) {
	hasHuman := false
	for _, p := range roster {
		if p.Kind == player.KindHuman {
			hasHuman = true
			break
		}
	}

	dist, err := Distribute(len(roster), hasHuman)
	if err != nil {
		return Distribution{}, err
	}

	deck := Deck(dist)
	for i, p := range roster {
		p.Assign(deck[i])
	}
	return dist, nil
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the host is broken; a zero seed is
		// still a functioning (if predictable) game.
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
