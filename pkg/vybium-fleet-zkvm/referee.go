package vybiumfleetzkvm

import (
	"bytes"
	"fmt"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

// Referee accepts fleet moves. A move is a CommunicationData envelope: the
// receipt of the guest for its command plus a journal signature made with
// the player's session key.
type Referee struct {
	verifier *Verifier
	ledger   *fleetcore.Ledger
	images   map[fleetcore.Command]*Image
}

// NewReferee creates a referee backed by ledger, expecting the builtin fleet
// guests
func NewReferee(v *Verifier, ledger *fleetcore.Ledger) (*Referee, error) {
	r := &Referee{verifier: v, ledger: ledger, images: make(map[fleetcore.Command]*Image)}
	for _, c := range fleetcore.Commands() {
		img, err := guest.ForCommand(c)
		if err != nil {
			return nil, utils.NewError(utils.ErrImageLoad, err, "guest for %s", c)
		}
		r.images[c] = img
	}
	return r, nil
}

// Ledger returns the game ledger
func (r *Referee) Ledger() *fleetcore.Ledger {
	return r.ledger
}

// Envelope builds the envelope a player submits for rc. random is the
// player's salt, from which the session key is derived.
func Envelope(c fleetcore.Command, rc *Receipt, random string) fleetcore.CommunicationData {
	pub, _ := fleetcore.SessionKey(random)
	return fleetcore.CommunicationData{
		Command:   c,
		Receipt:   rc.Encode(),
		Signature: fleetcore.SignJournal(random, rc.Journal),
		PublicKey: pub,
	}
}

// Submit verifies a move and applies it to the ledger. It returns the
// ledger's description of the transition.
func (r *Referee) Submit(data fleetcore.CommunicationData) (string, error) {
	img, ok := r.images[data.Command]
	if !ok {
		return "", utils.NewError(utils.ErrInvalidInput, nil, "unknown command %d", data.Command)
	}
	rc, err := receipt.Decode(data.Receipt)
	if err != nil {
		return "", utils.NewError(utils.ErrVerificationRejected, err, "decode receipt")
	}
	res := r.verifier.VerifyImage(rc, img)
	if err := res.Err(); err != nil {
		return "", err
	}
	journal, _ := res.Journal()

	if err := r.checkSigner(data, journal); err != nil {
		return "", err
	}
	if !fleetcore.VerifyJournalSignature(data.PublicKey, journal, data.Signature) {
		return "", utils.NewError(utils.ErrVerificationRejected, nil, "journal signature does not verify")
	}

	msg, err := r.ledger.Apply(data.Command, journal, data.PublicKey)
	if err != nil {
		return "", utils.NewError(utils.ErrInvalidInput, err, "%s rejected by ledger", data.Command)
	}
	return msg, nil
}

// SubmitBytes decodes an RLP envelope and submits it
func (r *Referee) SubmitBytes(raw []byte) (string, error) {
	var data fleetcore.CommunicationData
	if err := fleetcore.Decode(raw, &data); err != nil {
		return "", utils.NewError(utils.ErrInvalidInput, err, "decode envelope")
	}
	return r.Submit(data)
}

// checkSigner requires moves after join to be signed by the key the fleet
// registered when it joined
func (r *Referee) checkSigner(data fleetcore.CommunicationData, journal []byte) error {
	if data.Command == fleetcore.CommandJoin {
		return nil
	}
	gameID, fleet, err := journalPlayer(data.Command, journal)
	if err != nil {
		return utils.NewError(utils.ErrInvalidInput, err, "decode %s journal", data.Command)
	}
	key, ok := r.ledger.PlayerKey(gameID, fleet)
	if !ok {
		return utils.NewError(utils.ErrInvalidInput, fleetcore.ErrPlayerNotFound, "%s in game %s", fleet, gameID)
	}
	if !bytes.Equal(key, data.PublicKey) {
		return utils.NewError(utils.ErrVerificationRejected, nil, "%s is not signed by %s's session key", data.Command, fleet)
	}
	return nil
}

func journalPlayer(c fleetcore.Command, journal []byte) (gameID, fleet string, err error) {
	switch c {
	case fleetcore.CommandFire:
		j, err := fleetcore.DecodeFireJournal(journal)
		return j.GameID, j.Fleet, err
	case fleetcore.CommandReport:
		j, err := fleetcore.DecodeReportJournal(journal)
		return j.GameID, j.Fleet, err
	case fleetcore.CommandJoin, fleetcore.CommandWave, fleetcore.CommandWin:
		j, err := fleetcore.DecodeBaseJournal(journal)
		return j.GameID, j.Fleet, err
	default:
		return "", "", fmt.Errorf("unknown command %d", c)
	}
}
