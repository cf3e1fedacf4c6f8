package fleetcore

import "fmt"

func checkIdentity(in BaseInputs) error {
	if in.GameID == "" {
		return ErrEmptyGameID
	}
	if in.Fleet == "" {
		return ErrEmptyFleet
	}
	return nil
}

// checkTurn enforces the turn state carried in the inputs. Empty fields
// mean the host did not supply turn state.
func checkTurn(in BaseInputs) error {
	if in.NextReport != "" {
		return fmt.Errorf("%w: %s has to report first", ErrOutOfTurn, in.NextReport)
	}
	if in.NextPlayer != "" && in.NextPlayer != in.Fleet {
		return fmt.Errorf("%w: next player is %s", ErrOutOfTurn, in.NextPlayer)
	}
	return nil
}

// Join validates a full fleet placement and commits to it.
func Join(in BaseInputs) (BaseJournal, error) {
	if err := checkIdentity(in); err != nil {
		return BaseJournal{}, err
	}
	if err := ValidateFleet(in.Board); err != nil {
		return BaseJournal{}, err
	}
	return BaseJournal{
		GameID: in.GameID,
		Fleet:  in.Fleet,
		Board:  BoardDigest(in.Board, in.Random),
	}, nil
}

// Fire proves the shooter holds the committed board and names a shot.
func Fire(in FireInputs) (FireJournal, error) {
	base := in.Base()
	if err := checkIdentity(base); err != nil {
		return FireJournal{}, err
	}
	if in.Target == "" || in.Target == in.Fleet {
		return FireJournal{}, fmt.Errorf("%w: %q", ErrInvalidTarget, in.Target)
	}
	if int(in.Pos) >= BoardCells {
		return FireJournal{}, fmt.Errorf("%w: %d", ErrPositionRange, in.Pos)
	}
	if err := ValidateBoard(in.Board); err != nil {
		return FireJournal{}, err
	}
	if len(in.Board) == 0 {
		return FireJournal{}, ErrFleetSunk
	}
	if err := checkTurn(base); err != nil {
		return FireJournal{}, err
	}
	return FireJournal{
		GameID: in.GameID,
		Fleet:  in.Fleet,
		Board:  BoardDigest(in.Board, in.Random),
		Target: in.Target,
		Pos:    in.Pos,
	}, nil
}

// Report proves that the claimed Hit or Miss at Pos is truthful and commits
// to the board left after the shot.
func Report(in FireInputs) (ReportJournal, error) {
	base := in.Base()
	if err := checkIdentity(base); err != nil {
		return ReportJournal{}, err
	}
	if in.Target != ReportHit && in.Target != ReportMiss {
		return ReportJournal{}, fmt.Errorf("%w: %q", ErrInvalidReport, in.Target)
	}
	if int(in.Pos) >= BoardCells {
		return ReportJournal{}, fmt.Errorf("%w: %d", ErrPositionRange, in.Pos)
	}
	if err := ValidateBoard(in.Board); err != nil {
		return ReportJournal{}, err
	}
	if in.NextReport != "" && in.NextReport != in.Fleet {
		return ReportJournal{}, fmt.Errorf("%w: %s has to report", ErrOutOfTurn, in.NextReport)
	}

	hit := Contains(in.Board, in.Pos)
	if hit != (in.Target == ReportHit) {
		return ReportJournal{}, fmt.Errorf("%w: %s at %s", ErrDishonestReport, in.Target, FormatPosition(in.Pos))
	}

	return ReportJournal{
		GameID:    in.GameID,
		Fleet:     in.Fleet,
		Report:    in.Target,
		Pos:       in.Pos,
		Board:     BoardDigest(in.Board, in.Random),
		NextBoard: BoardDigest(Without(in.Board, in.Pos), in.Random),
	}, nil
}

// Wave passes the turn while proving the board is still the committed one.
func Wave(in BaseInputs) (BaseJournal, error) {
	if err := checkIdentity(in); err != nil {
		return BaseJournal{}, err
	}
	if err := ValidateBoard(in.Board); err != nil {
		return BaseJournal{}, err
	}
	if err := checkTurn(in); err != nil {
		return BaseJournal{}, err
	}
	return BaseJournal{
		GameID: in.GameID,
		Fleet:  in.Fleet,
		Board:  BoardDigest(in.Board, in.Random),
	}, nil
}

// Win proves the claimant still has at least one cell afloat.
func Win(in BaseInputs) (BaseJournal, error) {
	if err := checkIdentity(in); err != nil {
		return BaseJournal{}, err
	}
	if err := ValidateBoard(in.Board); err != nil {
		return BaseJournal{}, err
	}
	if len(in.Board) == 0 {
		return BaseJournal{}, ErrFleetSunk
	}
	return BaseJournal{
		GameID: in.GameID,
		Fleet:  in.Fleet,
		Board:  BoardDigest(in.Board, in.Random),
	}, nil
}
