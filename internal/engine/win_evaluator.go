package engine

import "github.com/phantom-night/server/internal/domain/player"

// evaluateWin checks the team-elimination conditions. Runs after every
// resolution, before the next phase starts.
//
// Citizens win when no phantom-aligned player is left alive. Phantoms win
// at parity or better: living phantom-aligned >= living citizen-aligned.
// The fanatic counts on the phantom side for both checks.
func evaluateWin(gs *gameState) (player.Team, bool) {
	phantomSide := 0
	citizenSide := 0
	for _, p := range gs.players {
		if !p.IsAlive {
			continue
		}
		if player.PhantomAligned(p.Role) {
			phantomSide++
		} else {
			citizenSide++
		}
	}

	if phantomSide == 0 {
		return player.TeamCitizens, true
	}
	if phantomSide >= citizenSide {
		return player.TeamPhantoms, true
	}
	return "", false
}
