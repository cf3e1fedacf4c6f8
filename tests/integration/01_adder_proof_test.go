package integration_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/random"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	zkvm "github.com/vybium/vybium-fleet-zkvm/pkg/vybium-fleet-zkvm"
)

func newPipeline(t *testing.T, scheme zkvm.Scheme) (*zkvm.Host, *zkvm.Verifier) {
	t.Helper()
	signer, err := zkvm.NewSigner(scheme, bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	cfg := zkvm.DefaultConfig().WithSealScheme(scheme.String())
	h, err := zkvm.NewHost(cfg, signer, zkvm.WithRandom(random.Deterministic([]byte(t.Name()))))
	if err != nil {
		t.Fatalf("Failed to create host: %v", err)
	}
	return h, zkvm.NewVerifier(zkvm.NewKeyRing(zkvm.TrustedKey{Scheme: scheme, PublicKey: signer.PublicKey()}))
}

// Test01_AdderProof runs the whole pipeline on the adder guest:
// 1. Build private inputs 3 and 4
// 2. Prove and serialize the receipt
// 3. Verify the decoded receipt against the adder image id
// 4. Tamper the journal to claim 8 and verify again
func Test01_AdderProof(t *testing.T) {
	for _, scheme := range []zkvm.Scheme{zkvm.SchemeEd25519, zkvm.SchemeDilithium3} {
		t.Run(scheme.String(), func(t *testing.T) {
			h, v := newPipeline(t, scheme)
			img := zkvm.MustBuiltin("adder")

			t.Log("Step 1: Building inputs...")
			bundle, err := zkvm.NewInputBuilder().PrivateWords(3, 4).Build()
			if err != nil {
				t.Fatalf("Failed to build inputs: %v", err)
			}

			t.Log("Step 2: Proving...")
			rc, err := h.Prove(context.Background(), img, bundle)
			if err != nil {
				t.Fatalf("Prove failed: %v", err)
			}
			raw := rc.Encode()
			t.Logf("  Receipt size: %d bytes, cid %s", len(raw), rc.CID())

			t.Log("Step 3: Verifying...")
			decoded, err := zkvm.DecodeReceipt(raw)
			if err != nil {
				t.Fatalf("Failed to decode receipt: %v", err)
			}
			res := v.Verify(decoded, img.ID())
			journal, ok := res.Journal()
			if !ok {
				t.Fatalf("Verification rejected: %s", res.Reason)
			}
			if !bytes.Equal(journal, utils.EncodeWord(7)) {
				t.Fatalf("journal = %x, want 7", journal)
			}

			t.Log("Step 4: Tampering the journal...")
			forged := decoded.Clone()
			forged.Journal = utils.EncodeWord(8)
			res = v.Verify(forged, img.ID())
			if res.Accepted {
				t.Fatal("journal 8 was accepted")
			}
			if _, ok := res.Journal(); ok {
				t.Error("rejected result exposed a journal")
			}
			t.Logf("  Rejected: %s", res.Reason)
		})
	}
}

// Test01_ReprovingIsFresh proves the same inputs twice. Journals match,
// proof bytes do not, and both verify.
func Test01_ReprovingIsFresh(t *testing.T) {
	h, v := newPipeline(t, zkvm.SchemeEd25519)
	img := zkvm.MustBuiltin("adder")
	bundle, _ := zkvm.NewInputBuilder().PrivateWords(10, 32).Build()

	first, err := h.Prove(context.Background(), img, bundle)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Prove(context.Background(), img, bundle)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Journal, second.Journal) {
		t.Errorf("journals differ: %x vs %x", first.Journal, second.Journal)
	}
	if bytes.Equal(first.Proof, second.Proof) {
		t.Error("re-proving produced identical proof bytes")
	}
	for _, rc := range []*zkvm.Receipt{first, second} {
		if res := v.Verify(rc, img.ID()); !res.Accepted {
			t.Errorf("rejected: %s", res.Reason)
		}
	}
}
