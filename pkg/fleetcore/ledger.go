package fleetcore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrBoardMismatch  = errors.New("board digest does not match current state")
	ErrGameOver       = errors.New("game is over")
	ErrNoOtherPlayers = errors.New("no other players to pass turn to")
	ErrFleetAfloat    = errors.New("opponent fleet still afloat")
)

// Player is one fleet's public state in a game.
type Player struct {
	Fleet     string
	Board     Digest
	Hits      int
	LastTurn  uint64
	PublicKey []byte
}

// GameState is a snapshot of a game.
type GameState struct {
	ID         string
	Players    []Player
	NextPlayer string
	NextReport string
	Winner     string
}

type game struct {
	players    map[string]*Player
	nextPlayer string
	nextReport string
	winner     string
}

// Ledger applies verified journals to game state. It never sees private
// inputs; every transition is checked against committed board digests.
// The turn clock is a move counter so replays are deterministic.
type Ledger struct {
	mu    sync.Mutex
	games map[string]*game
	clock uint64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{games: make(map[string]*game)}
}

func (l *Ledger) tick() uint64 {
	l.clock++
	return l.clock
}

func (l *Ledger) lookup(gameID, fleet string) (*game, *Player, error) {
	g, ok := l.games[gameID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if g.winner != "" {
		return nil, nil, fmt.Errorf("%w: %s won", ErrGameOver, g.winner)
	}
	p, ok := g.players[fleet]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s in game %s", ErrPlayerNotFound, fleet, gameID)
	}
	return g, p, nil
}

// Join registers a fleet with its committed board. The first player to join
// a game moves first.
func (l *Ledger) Join(j BaseJournal, publicKey []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.games[j.GameID]
	if !ok {
		g = &game{players: make(map[string]*Player), nextPlayer: j.Fleet}
		l.games[j.GameID] = g
	}
	if g.winner != "" {
		return "", fmt.Errorf("%w: %s won", ErrGameOver, g.winner)
	}
	if _, exists := g.players[j.Fleet]; exists {
		return fmt.Sprintf("player already in game %s", j.GameID), nil
	}
	g.players[j.Fleet] = &Player{
		Fleet:     j.Fleet,
		Board:     j.Board,
		LastTurn:  l.tick(),
		PublicKey: append([]byte(nil), publicKey...),
	}
	return fmt.Sprintf("%s joined game %s", j.Fleet, j.GameID), nil
}

// Fire records a shot and hands the report duty to the target.
func (l *Ledger) Fire(j FireJournal) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, p, err := l.lookup(j.GameID, j.Fleet)
	if err != nil {
		return "", err
	}
	if _, ok := g.players[j.Target]; !ok || j.Target == j.Fleet {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, j.Target)
	}
	if p.Board != j.Board {
		return "", ErrBoardMismatch
	}
	if g.nextReport != "" {
		return "", fmt.Errorf("%w: %s has to report first", ErrOutOfTurn, g.nextReport)
	}
	if g.nextPlayer != j.Fleet {
		return "", fmt.Errorf("%w: next player is %s", ErrOutOfTurn, g.nextPlayer)
	}
	if int(j.Pos) >= BoardCells {
		return "", fmt.Errorf("%w: %d", ErrPositionRange, j.Pos)
	}

	p.LastTurn = l.tick()
	g.nextReport = j.Target
	g.nextPlayer = ""
	return fmt.Sprintf("%s fired at %s in game %s at position %s",
		j.Fleet, j.Target, j.GameID, FormatPosition(j.Pos)), nil
}

// Report applies a proven Hit or Miss and gives the turn to the reporter.
func (l *Ledger) Report(j ReportJournal) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, p, err := l.lookup(j.GameID, j.Fleet)
	if err != nil {
		return "", err
	}
	if g.nextReport != j.Fleet {
		return "", fmt.Errorf("%w: %s is not due to report", ErrOutOfTurn, j.Fleet)
	}
	if p.Board != j.Board {
		return "", ErrBoardMismatch
	}
	if j.Report != ReportHit && j.Report != ReportMiss {
		return "", fmt.Errorf("%w: %q", ErrInvalidReport, j.Report)
	}

	if j.Report == ReportHit {
		p.Hits++
	}
	p.Board = j.NextBoard
	g.nextPlayer = j.Fleet
	g.nextReport = ""
	return fmt.Sprintf("%s reported %s at position %s in game %s",
		j.Fleet, j.Report, FormatPosition(j.Pos), j.GameID), nil
}

// Wave passes the turn to the player who has waited longest.
func (l *Ledger) Wave(j BaseJournal) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, p, err := l.lookup(j.GameID, j.Fleet)
	if err != nil {
		return "", err
	}
	if p.Board != j.Board {
		return "", ErrBoardMismatch
	}
	if g.nextReport != "" {
		return "", fmt.Errorf("%w: %s has to report first", ErrOutOfTurn, g.nextReport)
	}
	if g.nextPlayer != j.Fleet {
		return "", fmt.Errorf("%w: next player is %s", ErrOutOfTurn, g.nextPlayer)
	}

	var next *Player
	for _, other := range g.players {
		if other.Fleet == j.Fleet {
			continue
		}
		if next == nil || other.LastTurn < next.LastTurn {
			next = other
		}
	}
	if next == nil {
		return "", ErrNoOtherPlayers
	}
	p.LastTurn = l.tick()
	g.nextPlayer = next.Fleet
	return fmt.Sprintf("%s waved in game %s and passed turn to %s", j.Fleet, j.GameID, next.Fleet), nil
}

// Win closes the game once every opponent has reported all fleet cells hit.
// A game without opponents cannot be won.
func (l *Ledger) Win(j BaseJournal) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, p, err := l.lookup(j.GameID, j.Fleet)
	if err != nil {
		return "", err
	}
	if p.Board != j.Board {
		return "", ErrBoardMismatch
	}
	opponents := 0
	for _, other := range g.players {
		if other.Fleet == j.Fleet {
			continue
		}
		opponents++
		if other.Hits < FleetCells {
			return "", fmt.Errorf("%w: %s has %d cells left", ErrFleetAfloat, other.Fleet, FleetCells-other.Hits)
		}
	}
	if opponents == 0 {
		return "", fmt.Errorf("%w: nobody to win against in game %s", ErrNoOtherPlayers, j.GameID)
	}
	g.winner = j.Fleet
	g.nextPlayer = ""
	return fmt.Sprintf("%s won game %s", j.Fleet, j.GameID), nil
}

// Apply decodes journal for command c and applies it.
func (l *Ledger) Apply(c Command, journal, publicKey []byte) (string, error) {
	switch c {
	case CommandJoin, CommandWave, CommandWin:
		j, err := DecodeBaseJournal(journal)
		if err != nil {
			return "", err
		}
		switch c {
		case CommandJoin:
			return l.Join(j, publicKey)
		case CommandWave:
			return l.Wave(j)
		default:
			return l.Win(j)
		}
	case CommandFire:
		j, err := DecodeFireJournal(journal)
		if err != nil {
			return "", err
		}
		return l.Fire(j)
	case CommandReport:
		j, err := DecodeReportJournal(journal)
		if err != nil {
			return "", err
		}
		return l.Report(j)
	default:
		return "", fmt.Errorf("unknown command %d", c)
	}
}

// PlayerKey returns the session public key a fleet registered at join.
func (l *Ledger) PlayerKey(gameID, fleet string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.games[gameID]
	if !ok {
		return nil, false
	}
	p, ok := g.players[fleet]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), p.PublicKey...), true
}

// Game returns a snapshot of a game with players sorted by fleet id.
func (l *Ledger) Game(id string) (GameState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.games[id]
	if !ok {
		return GameState{}, false
	}
	st := GameState{ID: id, NextPlayer: g.nextPlayer, NextReport: g.nextReport, Winner: g.winner}
	for _, p := range g.players {
		cp := *p
		cp.PublicKey = append([]byte(nil), p.PublicKey...)
		st.Players = append(st.Players, cp)
	}
	sort.Slice(st.Players, func(i, j int) bool { return st.Players[i].Fleet < st.Players[j].Fleet })
	return st, true
}
