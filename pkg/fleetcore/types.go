// Package fleetcore is the fleet domain logic run inside guest programs.
//
// Every operation is a pure function from a typed input to a typed journal.
// Inputs carry the private board placement; journals expose only the board
// digest, so a verifier learns the outcome of a move without the placement.
package fleetcore

import (
	"encoding/hex"
	"fmt"
)

const (
	// BoardSide is the width and height of the board.
	BoardSide = 10
	// BoardCells is the number of addressable positions.
	BoardCells = BoardSide * BoardSide
	// FleetCells is the number of occupied cells in a full fleet.
	FleetCells = 35
)

// Report values accepted by the report operation.
const (
	ReportHit  = "Hit"
	ReportMiss = "Miss"
)

// Digest is a SHA-256 board commitment.
type Digest [32]byte

// String returns the hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// BaseInputs is the private input of join, wave and win.
type BaseInputs struct {
	GameID string
	Fleet  string
	Board  []uint8
	Random string
	// NextPlayer and NextReport are the turn state known to the host, empty
	// when unset.
	NextPlayer string
	NextReport string
}

// FireInputs is the private input of fire and report. For report, Target
// holds the claimed "Hit" or "Miss".
type FireInputs struct {
	GameID     string
	Fleet      string
	Board      []uint8
	Random     string
	Target     string
	Pos        uint8
	NextPlayer string
	NextReport string
}

// Base returns the embedded base inputs.
func (f FireInputs) Base() BaseInputs {
	return BaseInputs{
		GameID:     f.GameID,
		Fleet:      f.Fleet,
		Board:      f.Board,
		Random:     f.Random,
		NextPlayer: f.NextPlayer,
		NextReport: f.NextReport,
	}
}

// BaseJournal is the public output of join, wave and win.
type BaseJournal struct {
	GameID string
	Fleet  string
	Board  Digest
}

// FireJournal is the public output of fire.
type FireJournal struct {
	GameID string
	Fleet  string
	Board  Digest
	Target string
	Pos    uint8
}

// ReportJournal is the public output of report.
type ReportJournal struct {
	GameID    string
	Fleet     string
	Report    string
	Pos       uint8
	Board     Digest
	NextBoard Digest
}

// Command names a fleet operation.
type Command uint8

const (
	CommandJoin Command = iota
	CommandFire
	CommandReport
	CommandWave
	CommandWin
)

var commandNames = map[Command]string{
	CommandJoin:   "join",
	CommandFire:   "fire",
	CommandReport: "report",
	CommandWave:   "wave",
	CommandWin:    "win",
}

// String returns the lower-case command name.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", c)
}

// ParseCommand maps a command name to its Command.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// Commands lists every command in declaration order.
func Commands() []Command {
	return []Command{CommandJoin, CommandFire, CommandReport, CommandWave, CommandWin}
}

// CommunicationData is the envelope a player hands to a game ledger: the
// command, the serialized receipt and a journal signature made with the
// player's session key.
type CommunicationData struct {
	Command   Command
	Receipt   []byte
	Signature []byte
	PublicKey []byte
}
