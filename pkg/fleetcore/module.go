package fleetcore

// Version is the domain logic version linked into guest images. Bumping it
// changes every fleet image identity.
const Version uint32 = 1

// Operation is one fleet function exposed over encoded bytes, the shape the
// guest VM links against.
type Operation struct {
	Name    string
	Version uint32
	Apply   func(input []byte) ([]byte, error)
}

func wrapBase(fn func(BaseInputs) (BaseJournal, error)) func([]byte) ([]byte, error) {
	return func(input []byte) ([]byte, error) {
		var in BaseInputs
		if err := Decode(input, &in); err != nil {
			return nil, err
		}
		out, err := fn(in)
		if err != nil {
			return nil, err
		}
		return Encode(&out)
	}
}

func wrapFire[J any](fn func(FireInputs) (J, error)) func([]byte) ([]byte, error) {
	return func(input []byte) ([]byte, error) {
		var in FireInputs
		if err := Decode(input, &in); err != nil {
			return nil, err
		}
		out, err := fn(in)
		if err != nil {
			return nil, err
		}
		return Encode(&out)
	}
}

// OperationName returns the linked module name of a command.
func OperationName(c Command) string {
	return "fleetcore." + c.String()
}

// Operations returns the byte-level form of every fleet command.
func Operations() []Operation {
	return []Operation{
		{Name: OperationName(CommandJoin), Version: Version, Apply: wrapBase(Join)},
		{Name: OperationName(CommandFire), Version: Version, Apply: wrapFire(Fire)},
		{Name: OperationName(CommandReport), Version: Version, Apply: wrapFire(Report)},
		{Name: OperationName(CommandWave), Version: Version, Apply: wrapBase(Wave)},
		{Name: OperationName(CommandWin), Version: Version, Apply: wrapBase(Win)},
	}
}
