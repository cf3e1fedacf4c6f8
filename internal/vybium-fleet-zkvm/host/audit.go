package host

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/protocols"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/random"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

const traceKeyInfo = "vybium-fleet-zkvm/trace/v1"

// AuditRecord holds the per-run secret that keys the trace commitment of a
// sealed run. Together with the inputs it lets an auditor re-execute the
// run and check the seal. It must stay as private as the inputs.
type AuditRecord struct {
	TraceSecret [32]byte
}

func (r *AuditRecord) traceKey() ([32]byte, error) {
	return random.DeriveKey(r.TraceSecret[:], traceKeyInfo)
}

// MarshalText encodes the record as hex
func (r AuditRecord) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(r.TraceSecret[:])), nil
}

// UnmarshalText decodes a hex record
func (r *AuditRecord) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(bytes.TrimSpace(text)))
	if err != nil {
		return fmt.Errorf("audit record: %w", err)
	}
	if len(b) != len(r.TraceSecret) {
		return fmt.Errorf("audit record: %d bytes, want %d", len(b), len(r.TraceSecret))
	}
	copy(r.TraceSecret[:], b)
	return nil
}

// Audit re-executes img on bundle under the trace key of rec and checks that
// the journal, exit code, cycle count and trace commitment all match rc.
// It does not check the seal signature; verify the receipt first.
//
// A mismatch returns VerificationRejected. Image and input errors follow
// Execute.
func (h *Host) Audit(ctx context.Context, rc *receipt.Receipt, img *guest.Image, bundle *Bundle, rec *AuditRecord) error {
	if rc == nil || rec == nil {
		return utils.NewError(utils.ErrInvalidInput, nil, "audit needs a receipt and a record")
	}
	modules, err := h.link(img)
	if err != nil {
		return err
	}
	if bundle == nil {
		return utils.NewError(utils.ErrInvalidInput, nil, "nil input bundle")
	}
	if rc.ImageID != img.ID() {
		return utils.NewError(utils.ErrVerificationRejected, nil, "receipt is for image %s, not %s", rc.ImageID.Hex(), img.Name)
	}
	seal, err := protocols.DecodeSeal(rc.Proof)
	if err != nil {
		return utils.NewError(utils.ErrVerificationRejected, err, "decode seal")
	}
	traceKey, err := rec.traceKey()
	if err != nil {
		return utils.NewError(utils.ErrInvalidInput, err, "trace key")
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	session, err := h.run(ctx, img, modules, bundle, traceKey)
	if err != nil {
		if utils.CodeOf(err) == utils.ErrGuestAbort {
			return utils.NewError(utils.ErrVerificationRejected, err, "re-execution aborted")
		}
		return err
	}

	switch {
	case !bytes.Equal(session.Journal, rc.Journal):
		return utils.NewError(utils.ErrVerificationRejected, nil, "journal does not match re-execution")
	case session.ExitCode != seal.ExitCode:
		return utils.NewError(utils.ErrVerificationRejected, nil, "exit code %d, re-execution gave %d", seal.ExitCode, session.ExitCode)
	case session.Cycles != seal.Cycles:
		return utils.NewError(utils.ErrVerificationRejected, nil, "cycles %d, re-execution gave %d", seal.Cycles, session.Cycles)
	case uint32(session.Trace.Height) != seal.TraceHeight:
		return utils.NewError(utils.ErrVerificationRejected, nil, "trace height %d, re-execution gave %d", seal.TraceHeight, session.Trace.Height)
	case !bytes.Equal(session.Trace.Root, seal.TraceRoot[:]):
		return utils.NewError(utils.ErrVerificationRejected, nil, "trace root does not match re-execution")
	}
	h.log.Debug("audited", "image", img.Name, "cycles", session.Cycles)
	return nil
}
