package fleetcore

import (
	"crypto/ed25519"

	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// SessionKey derives the player's journal signing key from their random
// salt. The same salt always yields the same key.
func SessionKey(random string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha2.SumConcat([]byte("fleetcore/session-key/v1"), []byte(random))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

// SignJournal signs journal bytes with the session key of random.
func SignJournal(random string, journal []byte) []byte {
	_, priv := SessionKey(random)
	return ed25519.Sign(priv, journal)
}

// VerifyJournalSignature checks a SignJournal signature.
func VerifyJournalSignature(pub []byte, journal, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), journal, sig)
}
