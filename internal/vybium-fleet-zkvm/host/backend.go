package host

import (
	"context"
	"fmt"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/protocols"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/vm"
)

// Backend turns a completed session into proof bytes. Errors are treated as
// transient proving failures unless they already carry a code.
type Backend interface {
	Seal(ctx context.Context, claim *protocols.Claim, session *vm.Session) ([]byte, error)
}

// TraceBackend seals sessions by signing the claim over their committed
// trace
type TraceBackend struct {
	signer   protocols.Signer
	hashFunc string
}

// NewTraceBackend creates the default backend
func NewTraceBackend(signer protocols.Signer, hashFunc string) *TraceBackend {
	return &TraceBackend{signer: signer, hashFunc: hashFunc}
}

// Seal implements Backend
func (b *TraceBackend) Seal(ctx context.Context, claim *protocols.Claim, session *vm.Session) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if session.Trace == nil {
		return nil, fmt.Errorf("session has no trace commitment")
	}
	seal, err := protocols.SignClaim(claim, b.hashFunc, session.Trace.Height, b.signer)
	if err != nil {
		return nil, err
	}
	return seal.Encode(), nil
}
