package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

// moveYAML is the YAML form of a fleet move. The board is a comma separated
// position list; the shot is either pos or column x (A-J) and row y (0-9).
type moveYAML struct {
	Command    string `yaml:"command"`
	GameID     string `yaml:"game_id"`
	Fleet      string `yaml:"fleet"`
	Board      string `yaml:"board"`
	Random     string `yaml:"random"`
	Target     string `yaml:"target"`
	Pos        *uint8 `yaml:"pos"`
	X          string `yaml:"x"`
	Y          string `yaml:"y"`
	NextPlayer string `yaml:"next_player"`
	NextReport string `yaml:"next_report"`
}

// moveFile is a parsed move. inputs is *BaseInputs or *FireInputs and
// receives the host salt when random is empty.
type moveFile struct {
	command fleetcore.Command
	inputs  any
}

func (m *moveFile) random() string {
	switch in := m.inputs.(type) {
	case *fleetcore.BaseInputs:
		return in.Random
	case *fleetcore.FireInputs:
		return in.Random
	}
	return ""
}

func readMove(path string) (*moveFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewError(utils.ErrInvalidInput, err, "read move %s", path)
	}
	return parseMove(data)
}

func parseMove(data []byte) (*moveFile, error) {
	var doc moveYAML
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, utils.NewError(utils.ErrInvalidInput, err, "parse move")
	}
	c, err := fleetcore.ParseCommand(doc.Command)
	if err != nil {
		return nil, utils.NewError(utils.ErrInvalidInput, err, "move command")
	}
	board, err := fleetcore.ParseBoard(doc.Board)
	if err != nil {
		return nil, utils.NewError(utils.ErrInvalidInput, err, "move board")
	}

	switch c {
	case fleetcore.CommandFire, fleetcore.CommandReport:
		pos, err := doc.position()
		if err != nil {
			return nil, utils.NewError(utils.ErrInvalidInput, err, "move position")
		}
		return &moveFile{command: c, inputs: &fleetcore.FireInputs{
			GameID:     doc.GameID,
			Fleet:      doc.Fleet,
			Board:      board,
			Random:     doc.Random,
			Target:     doc.Target,
			Pos:        pos,
			NextPlayer: doc.NextPlayer,
			NextReport: doc.NextReport,
		}}, nil
	default:
		return &moveFile{command: c, inputs: &fleetcore.BaseInputs{
			GameID:     doc.GameID,
			Fleet:      doc.Fleet,
			Board:      board,
			Random:     doc.Random,
			NextPlayer: doc.NextPlayer,
			NextReport: doc.NextReport,
		}}, nil
	}
}

func (s *moveYAML) position() (uint8, error) {
	if s.Pos != nil {
		return *s.Pos, nil
	}
	if s.X == "" && s.Y == "" {
		return 0, fmt.Errorf("pos or x and y required")
	}
	return fleetcore.ParseCoordinates(s.X, s.Y)
}

// describeJournal renders the journal of a builtin guest, or "" for other
// images
func describeJournal(image string, journal []byte) string {
	switch image {
	case "adder":
		if len(journal) == 8 {
			return fmt.Sprintf("sum=%d", binary.LittleEndian.Uint64(journal))
		}
	case "join", "wave", "win":
		if j, err := fleetcore.DecodeBaseJournal(journal); err == nil {
			return fmt.Sprintf("game=%s fleet=%s board=%s", j.GameID, j.Fleet, j.Board)
		}
	case "fire":
		if j, err := fleetcore.DecodeFireJournal(journal); err == nil {
			return fmt.Sprintf("game=%s fleet=%s target=%s pos=%s", j.GameID, j.Fleet, j.Target, fleetcore.FormatPosition(j.Pos))
		}
	case "report":
		if j, err := fleetcore.DecodeReportJournal(journal); err == nil {
			return fmt.Sprintf("game=%s fleet=%s report=%s pos=%s", j.GameID, j.Fleet, j.Report, fleetcore.FormatPosition(j.Pos))
		}
	}
	return ""
}
