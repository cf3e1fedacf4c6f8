package fleetcore

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// Inputs and journals cross the guest boundary RLP-encoded. RLP is canonical,
// so equal values always produce byte-identical journals.

// Encode serializes any fleetcore input, journal or envelope.
func Encode(v any) ([]byte, error) {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("fleetcore: encode %T: %w", v, err)
	}
	return b, nil
}

// Decode deserializes data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	if err := rlp.DecodeBytes(data, v); err != nil {
		return fmt.Errorf("fleetcore: decode %T: %w", v, err)
	}
	return nil
}

// DecodeBaseJournal decodes a join, wave or win journal.
func DecodeBaseJournal(data []byte) (BaseJournal, error) {
	var j BaseJournal
	err := Decode(data, &j)
	return j, err
}

// DecodeFireJournal decodes a fire journal.
func DecodeFireJournal(data []byte) (FireJournal, error) {
	var j FireJournal
	err := Decode(data, &j)
	return j, err
}

// DecodeReportJournal decodes a report journal.
func DecodeReportJournal(data []byte) (ReportJournal, error) {
	var j ReportJournal
	err := Decode(data, &j)
	return j, err
}
