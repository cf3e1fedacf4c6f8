package host

import (
	"context"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

// SaltLength is the length of salts drawn for fleet inputs
const SaltLength = 21

// Salt draws a fresh board salt
func (h *Host) Salt() (string, error) {
	s, err := h.rand.Salt(SaltLength)
	if err != nil {
		return "", utils.NewError(utils.ErrProvingFailure, err, "draw salt")
	}
	return s, nil
}

// FleetBundle encodes fleet inputs as the single private frame of a fleet
// guest. in must be *fleetcore.BaseInputs or *fleetcore.FireInputs; an
// empty Random is replaced with a fresh salt and written back to in.
func (h *Host) FleetBundle(in any) (*Bundle, error) {
	var random *string
	switch v := in.(type) {
	case *fleetcore.BaseInputs:
		random = &v.Random
	case *fleetcore.FireInputs:
		random = &v.Random
	default:
		return nil, utils.NewError(utils.ErrInvalidInput, nil, "unsupported fleet input %T", in)
	}
	if *random == "" {
		s, err := h.Salt()
		if err != nil {
			return nil, err
		}
		*random = s
	}
	return NewInputBuilder().PrivateValue(in).Build()
}

// ProveCommand proves fleet command c on in with the builtin guest for c
func (h *Host) ProveCommand(ctx context.Context, c fleetcore.Command, in any) (*receipt.Receipt, error) {
	img, err := guest.ForCommand(c)
	if err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "guest for %s", c)
	}
	bundle, err := h.FleetBundle(in)
	if err != nil {
		return nil, err
	}
	return h.Prove(ctx, img, bundle)
}
