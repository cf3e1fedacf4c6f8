// Package vybiumfleetzkvm proves and verifies runs of guest programs on the
// Vybium fleet zkVM.
//
// A guest image is a deterministic stack machine program together with the
// domain modules it links. The proving host runs an image on an input bundle
// and returns a Receipt: the journal the guest committed, the image identity,
// and a seal: a trusted prover key's signature over that claim. Private
// inputs never leave the host.
//
// A verifier trusts the keys in its KeyRing, not the execution itself. To
// check a run, keep the AuditRecord returned by Host.ProveWithAudit with the
// inputs; Host.Audit re-executes the image and rejects a receipt whose
// journal or execution summary does not match.
//
// # Quick Start
//
// Proving a run:
//
//	signer, err := vybiumfleetzkvm.GenerateSigner(vybiumfleetzkvm.SchemeEd25519, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	h, err := vybiumfleetzkvm.NewHost(vybiumfleetzkvm.DefaultConfig(), signer)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	bundle, err := vybiumfleetzkvm.NewInputBuilder().PrivateWords(3, 4).Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	receipt, err := h.Prove(ctx, vybiumfleetzkvm.MustBuiltin("adder"), bundle)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Verifying it:
//
//	keys := vybiumfleetzkvm.NewKeyRing()
//	keys.TrustSigner(signer)
//	v := vybiumfleetzkvm.NewVerifier(keys)
//
//	result := v.Verify(receipt, vybiumfleetzkvm.MustBuiltin("adder").ID())
//	if journal, ok := result.Journal(); ok {
//		fmt.Printf("journal: %x\n", journal)
//	}
//
// # Errors
//
// Proving errors carry a code matched with errors.Is against ErrGuestAbort,
// ErrProvingFailure, ErrImageLoad and ErrTimeout. Only ErrProvingFailure is
// retried by the host. Verification never returns an error; a rejected
// Result carries the reason.
//
// # Fleet referee
//
// The fleet guests (join, fire, report, wave, win) expose only board
// digests. A Referee verifies submitted receipts against the guest registered
// for each command and applies the journals to a game ledger.
package vybiumfleetzkvm
