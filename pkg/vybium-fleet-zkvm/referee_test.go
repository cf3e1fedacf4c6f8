package vybiumfleetzkvm

import (
	"context"
	"errors"
	"testing"

	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

func fleetBoard() []uint8 {
	return []uint8{
		0, 1, 2, 3, 4,
		6, 7, 8, 9,
		20, 21, 22, 23,
		25, 26, 27,
		40, 41, 42,
		44, 45, 46,
		48, 49,
		60, 61,
		63, 64,
		66, 67,
		80, 82, 84, 86, 88,
	}
}

type player struct {
	name  string
	board []uint8
	salt  string
}

func move(t *testing.T, h *Host, c fleetcore.Command, p *player, in any) fleetcore.CommunicationData {
	t.Helper()
	rc, err := h.ProveCommand(context.Background(), c, in)
	if err != nil {
		t.Fatalf("%s %s: %v", p.name, c, err)
	}
	switch v := in.(type) {
	case *fleetcore.BaseInputs:
		p.salt = v.Random
	case *fleetcore.FireInputs:
		p.salt = v.Random
	}
	return Envelope(c, rc, p.salt)
}

func TestRefereeGame(t *testing.T) {
	h, v := testHost(t)
	ref, err := NewReferee(v, fleetcore.NewLedger())
	if err != nil {
		t.Fatal(err)
	}
	alice := &player{name: "alice", board: fleetBoard()}
	bob := &player{name: "bob", board: fleetBoard()}

	for _, p := range []*player{alice, bob} {
		env := move(t, h, fleetcore.CommandJoin, p, &fleetcore.BaseInputs{GameID: "g", Fleet: p.name, Board: p.board})
		if _, err := ref.Submit(env); err != nil {
			t.Fatalf("%s join: %v", p.name, err)
		}
	}

	fire := move(t, h, fleetcore.CommandFire, alice, &fleetcore.FireInputs{
		GameID: "g", Fleet: "alice", Board: alice.board, Random: alice.salt, Target: "bob", Pos: 0,
	})

	// bob's session key cannot sign alice's move
	forged := fire
	forged.Signature = fleetcore.SignJournal(bob.salt, mustReceipt(t, fire).Journal)
	forged.PublicKey, _ = fleetcore.SessionKey(bob.salt)
	if _, err := ref.Submit(forged); !errors.Is(err, ErrVerificationRejected) {
		t.Errorf("forged fire error = %v, want ErrVerificationRejected", err)
	}

	raw, err := fleetcore.Encode(&fire)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := ref.SubmitBytes(raw)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if msg == "" {
		t.Error("fire produced no ledger message")
	}

	report := move(t, h, fleetcore.CommandReport, bob, &fleetcore.FireInputs{
		GameID: "g", Fleet: "bob", Board: bob.board, Random: bob.salt, Target: fleetcore.ReportHit, Pos: 0,
	})
	if _, err := ref.Submit(report); err != nil {
		t.Fatalf("report: %v", err)
	}

	st, ok := ref.Ledger().Game("g")
	if !ok {
		t.Fatal("game missing from ledger")
	}
	if st.NextPlayer != "bob" || st.Players[1].Hits != 1 {
		t.Errorf("game state = %+v", st)
	}

	// a lying report aborts in the guest and never reaches the referee
	_, err = h.ProveCommand(context.Background(), fleetcore.CommandReport, &fleetcore.FireInputs{
		GameID: "g", Fleet: "bob", Board: fleetcore.Without(bob.board, 0), Random: bob.salt,
		Target: fleetcore.ReportHit, Pos: 0,
	})
	if !errors.Is(err, ErrGuestAbort) || !errors.Is(err, fleetcore.ErrDishonestReport) {
		t.Errorf("dishonest report error = %v, want ErrGuestAbort", err)
	}
}

func mustReceipt(t *testing.T, data fleetcore.CommunicationData) *Receipt {
	t.Helper()
	rc, err := DecodeReceipt(data.Receipt)
	if err != nil {
		t.Fatal(err)
	}
	return rc
}

func TestRefereeRejects(t *testing.T) {
	h, v := testHost(t)
	ref, err := NewReferee(v, fleetcore.NewLedger())
	if err != nil {
		t.Fatal(err)
	}
	alice := &player{name: "alice", board: fleetBoard()}
	join := move(t, h, fleetcore.CommandJoin, alice, &fleetcore.BaseInputs{GameID: "g", Fleet: "alice", Board: alice.board})

	wrongCommand := join
	wrongCommand.Command = fleetcore.CommandWave

	tamperedReceipt := join
	rc := mustReceipt(t, join).Clone()
	rc.Journal[len(rc.Journal)-1] ^= 1
	tamperedReceipt.Receipt = rc.Encode()

	badSignature := join
	badSignature.Signature = append([]byte(nil), join.Signature...)
	badSignature.Signature[0] ^= 1

	tests := []struct {
		name string
		data fleetcore.CommunicationData
	}{
		{"receipt for another command", wrongCommand},
		{"tampered journal", tamperedReceipt},
		{"bad journal signature", badSignature},
		{"garbage receipt", fleetcore.CommunicationData{Command: fleetcore.CommandJoin, Receipt: []byte{1, 2, 3}}},
		{"unknown command", fleetcore.CommunicationData{Command: 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ref.Submit(tt.data); err == nil {
				t.Error("Submit() accepted")
			}
		})
	}

	if _, err := ref.Submit(join); err != nil {
		t.Fatalf("valid join rejected: %v", err)
	}
	if _, err := ref.SubmitBytes([]byte{0xff}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SubmitBytes(garbage) error = %v, want ErrInvalidInput", err)
	}
}
