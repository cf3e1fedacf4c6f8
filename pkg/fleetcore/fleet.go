package fleetcore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

var (
	ErrEmptyGameID     = errors.New("game id must not be empty")
	ErrEmptyFleet      = errors.New("fleet id must not be empty")
	ErrPositionRange   = errors.New("position out of range")
	ErrDuplicateCell   = errors.New("duplicate board cell")
	ErrInvalidFleet    = errors.New("invalid fleet placement")
	ErrInvalidTarget   = errors.New("invalid target fleet")
	ErrInvalidReport   = errors.New("report must be Hit or Miss")
	ErrDishonestReport = errors.New("report does not match board")
	ErrFleetSunk       = errors.New("fleet has no cells left")
	ErrOutOfTurn       = errors.New("move out of turn")
)

// shipQuota maps ship length to the number of ships of that length.
var shipQuota = map[int]int{5: 1, 4: 2, 3: 3, 2: 4, 1: 5}

// Position returns the board position of column x and row y.
func Position(x, y uint8) uint8 {
	return y*BoardSide + x
}

// XY splits a position into column and row.
func XY(pos uint8) (x, y uint8) {
	return pos % BoardSide, pos / BoardSide
}

// ValidateBoard checks that every cell is on the board and appears once.
func ValidateBoard(board []uint8) error {
	if len(board) > FleetCells {
		return fmt.Errorf("%w: %d cells, at most %d", ErrInvalidFleet, len(board), FleetCells)
	}
	var seen [BoardCells]bool
	for _, p := range board {
		if int(p) >= BoardCells {
			return fmt.Errorf("%w: %d", ErrPositionRange, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: %d", ErrDuplicateCell, p)
		}
		seen[p] = true
	}
	return nil
}

// ValidateFleet checks a complete placement: 35 cells forming one ship of
// length 5, two of 4, three of 3, four of 2 and five of 1. Ships are straight
// and must not touch each other edge to edge.
func ValidateFleet(board []uint8) error {
	if err := ValidateBoard(board); err != nil {
		return err
	}
	if len(board) != FleetCells {
		return fmt.Errorf("%w: %d cells, want %d", ErrInvalidFleet, len(board), FleetCells)
	}

	var occupied [BoardCells]bool
	for _, p := range board {
		occupied[p] = true
	}

	counts := make(map[int]int)
	var visited [BoardCells]bool
	for _, start := range board {
		if visited[start] {
			continue
		}
		ship := component(&occupied, &visited, start)
		if !straight(ship) {
			return fmt.Errorf("%w: ship at %s is not straight", ErrInvalidFleet, FormatPosition(start))
		}
		counts[len(ship)]++
	}

	for size, want := range shipQuota {
		if counts[size] != want {
			return fmt.Errorf("%w: %d ships of length %d, want %d", ErrInvalidFleet, counts[size], size, want)
		}
	}
	for size := range counts {
		if _, ok := shipQuota[size]; !ok {
			return fmt.Errorf("%w: ship of length %d", ErrInvalidFleet, size)
		}
	}
	return nil
}

// component collects the 4-connected cells reachable from start.
func component(occupied, visited *[BoardCells]bool, start uint8) []uint8 {
	stack := []uint8{start}
	visited[start] = true
	var cells []uint8
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cells = append(cells, p)

		x, y := XY(p)
		var next []uint8
		if x > 0 {
			next = append(next, p-1)
		}
		if x < BoardSide-1 {
			next = append(next, p+1)
		}
		if y > 0 {
			next = append(next, p-BoardSide)
		}
		if y < BoardSide-1 {
			next = append(next, p+BoardSide)
		}
		for _, n := range next {
			if occupied[n] && !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}
	return cells
}

func straight(cells []uint8) bool {
	x0, y0 := XY(cells[0])
	sameRow, sameCol := true, true
	for _, c := range cells[1:] {
		x, y := XY(c)
		if y != y0 {
			sameRow = false
		}
		if x != x0 {
			sameCol = false
		}
	}
	return sameRow || sameCol
}

const boardDigestTag = "fleetcore/board/v1"

// boardCommitment is the preimage of a board digest. RLP length-prefixes
// both fields, so no cells can move between the board and the salt.
type boardCommitment struct {
	Cells  []byte
	Random string
}

// BoardDigest commits to a board: SHA-256 over a tag and the RLP list of
// the sorted cells and the player's random salt.
func BoardDigest(board []uint8, random string) Digest {
	sorted := append([]uint8(nil), board...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	enc, err := rlp.EncodeToBytes(&boardCommitment{Cells: sorted, Random: random})
	if err != nil {
		panic(fmt.Sprintf("fleetcore: encode board commitment: %v", err))
	}
	return Digest(sha2.SumConcat([]byte(boardDigestTag), enc))
}

// Contains reports whether pos is occupied.
func Contains(board []uint8, pos uint8) bool {
	for _, p := range board {
		if p == pos {
			return true
		}
	}
	return false
}

// Without returns a copy of board with pos removed.
func Without(board []uint8, pos uint8) []uint8 {
	out := make([]uint8, 0, len(board))
	for _, p := range board {
		if p != pos {
			out = append(out, p)
		}
	}
	return out
}
