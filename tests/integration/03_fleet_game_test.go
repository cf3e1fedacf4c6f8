package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/store"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
	zkvm "github.com/vybium/vybium-fleet-zkvm/pkg/vybium-fleet-zkvm"
)

func fullFleet() []uint8 {
	board, err := fleetcore.ParseBoard("0,1,2,3,4,6,7,8,9,20,21,22,23,25,26,27,40,41,42,44,45,46,48,49,60,61,63,64,66,67,80,82,84,86,88")
	if err != nil {
		panic(err)
	}
	return board
}

type fleetPlayer struct {
	name  string
	board []uint8
	salt  string
}

type table struct {
	t       *testing.T
	host    *zkvm.Host
	referee *zkvm.Referee
	cas     store.CAS
}

// play proves a move, stores its receipt, reloads it from the store and
// submits the envelope
func (tb *table) play(c fleetcore.Command, p *fleetPlayer, in any) (string, error) {
	tb.t.Helper()
	ctx := context.Background()
	rc, err := tb.host.ProveCommand(ctx, c, in)
	if err != nil {
		return "", err
	}
	switch v := in.(type) {
	case *fleetcore.BaseInputs:
		p.salt = v.Random
	case *fleetcore.FireInputs:
		p.salt = v.Random
	}

	id, err := store.PutReceipt(ctx, tb.cas, rc)
	if err != nil {
		tb.t.Fatalf("Failed to store receipt: %v", err)
	}
	stored, err := store.GetReceipt(ctx, tb.cas, id)
	if err != nil {
		tb.t.Fatalf("Failed to load receipt %s: %v", id, err)
	}

	env := zkvm.Envelope(c, stored, p.salt)
	raw, err := fleetcore.Encode(&env)
	if err != nil {
		tb.t.Fatal(err)
	}
	return tb.referee.SubmitBytes(raw)
}

func (tb *table) mustPlay(c fleetcore.Command, p *fleetPlayer, in any) {
	tb.t.Helper()
	msg, err := tb.play(c, p, in)
	if err != nil {
		tb.t.Fatalf("%s %s: %v", p.name, c, err)
	}
	tb.t.Logf("  %s", msg)
}

// Test03_FleetGame plays a short game through proofs:
// 1. Alice and Bob join with full fleets
// 2. Alice fires at Bob, Bob reports a hit
// 3. Bob fires at Alice, Alice reports a miss
// 4. Alice waves the turn to Bob
// 5. Out-of-turn and premature moves are refused by the ledger
func Test03_FleetGame(t *testing.T) {
	h, v := newPipeline(t, zkvm.SchemeEd25519)
	cas, err := store.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ref, err := zkvm.NewReferee(v, fleetcore.NewLedger())
	if err != nil {
		t.Fatal(err)
	}
	tb := &table{t: t, host: h, referee: ref, cas: cas}
	alice := &fleetPlayer{name: "alice", board: fullFleet()}
	bob := &fleetPlayer{name: "bob", board: fullFleet()}

	t.Log("Step 1: Joining...")
	for _, p := range []*fleetPlayer{alice, bob} {
		tb.mustPlay(fleetcore.CommandJoin, p, &fleetcore.BaseInputs{GameID: "g", Fleet: p.name, Board: p.board})
	}

	t.Log("Step 2: Alice fires at B0...")
	tb.mustPlay(fleetcore.CommandFire, alice, &fleetcore.FireInputs{
		GameID: "g", Fleet: "alice", Board: alice.board, Random: alice.salt, Target: "bob", Pos: 0,
	})
	tb.mustPlay(fleetcore.CommandReport, bob, &fleetcore.FireInputs{
		GameID: "g", Fleet: "bob", Board: bob.board, Random: bob.salt, Target: fleetcore.ReportHit, Pos: 0,
	})
	bob.board = fleetcore.Without(bob.board, 0)

	t.Log("Step 3: Bob fires at J9...")
	tb.mustPlay(fleetcore.CommandFire, bob, &fleetcore.FireInputs{
		GameID: "g", Fleet: "bob", Board: bob.board, Random: bob.salt, Target: "alice", Pos: 99,
	})
	tb.mustPlay(fleetcore.CommandReport, alice, &fleetcore.FireInputs{
		GameID: "g", Fleet: "alice", Board: alice.board, Random: alice.salt, Target: fleetcore.ReportMiss, Pos: 99,
	})

	t.Log("Step 4: Alice waves...")
	tb.mustPlay(fleetcore.CommandWave, alice, &fleetcore.BaseInputs{
		GameID: "g", Fleet: "alice", Board: alice.board, Random: alice.salt,
	})

	st, _ := ref.Ledger().Game("g")
	if st.NextPlayer != "bob" || st.Players[1].Hits != 1 || st.Players[0].Hits != 0 {
		t.Errorf("game state = %+v", st)
	}

	t.Log("Step 5: Refused moves...")
	_, err = tb.play(fleetcore.CommandFire, alice, &fleetcore.FireInputs{
		GameID: "g", Fleet: "alice", Board: alice.board, Random: alice.salt, Target: "bob", Pos: 1,
	})
	if !errors.Is(err, fleetcore.ErrOutOfTurn) {
		t.Errorf("out of turn fire error = %v", err)
	}
	_, err = tb.play(fleetcore.CommandWin, bob, &fleetcore.BaseInputs{
		GameID: "g", Fleet: "bob", Board: bob.board, Random: bob.salt,
	})
	if !errors.Is(err, fleetcore.ErrFleetAfloat) {
		t.Errorf("premature win error = %v", err)
	}
	// a stale board is a valid proof of the wrong state
	_, err = tb.play(fleetcore.CommandWave, bob, &fleetcore.BaseInputs{
		GameID: "g", Fleet: "bob", Board: fullFleet(), Random: bob.salt,
	})
	if !errors.Is(err, fleetcore.ErrBoardMismatch) {
		t.Errorf("stale board error = %v", err)
	}
}

// Test03_LyingReportAborts checks that a false report cannot be proven
func Test03_LyingReportAborts(t *testing.T) {
	h, _ := newPipeline(t, zkvm.SchemeEd25519)
	_, err := h.ProveCommand(context.Background(), fleetcore.CommandReport, &fleetcore.FireInputs{
		GameID: "g", Fleet: "bob", Board: fullFleet(), Target: fleetcore.ReportMiss, Pos: 0,
	})
	if !errors.Is(err, zkvm.ErrGuestAbort) || !errors.Is(err, fleetcore.ErrDishonestReport) {
		t.Errorf("lying report error = %v", err)
	}
	if zkvm.Retryable(err) {
		t.Error("guest abort reported as retryable")
	}
}
