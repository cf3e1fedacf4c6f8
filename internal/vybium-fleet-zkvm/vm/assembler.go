package vm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// AssemblyError reports a source line that could not be assembled
type AssemblyError struct {
	Line int
	Text string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

type sourceLine struct {
	number int
	text   string
	fields []string
}

// Assemble translates assembler source into a program. Labels end with a
// colon and may be used as call targets. Comments start with ';' or '//'.
// Lines starting with '.' are directives and are skipped here.
func Assemble(src string) (*Program, error) {
	var lines []sourceLine
	labels := make(map[string]int)
	addr := 0

	scanner := bufio.NewScanner(strings.NewReader(src))
	for n := 1; scanner.Scan(); n++ {
		text := stripComment(scanner.Text())
		if text == "" || strings.HasPrefix(text, ".") {
			continue
		}
		for strings.Contains(text, ":") {
			i := strings.Index(text, ":")
			label := strings.TrimSpace(text[:i])
			if !validLabel(label) {
				return nil, &AssemblyError{n, text, fmt.Errorf("invalid label %q", label)}
			}
			if _, dup := labels[label]; dup {
				return nil, &AssemblyError{n, text, fmt.Errorf("duplicate label %q", label)}
			}
			labels[label] = addr
			text = strings.TrimSpace(text[i+1:])
		}
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		op, ok := LookupInstruction(fields[0])
		if !ok {
			return nil, &AssemblyError{n, text, fmt.Errorf("unknown instruction %q", fields[0])}
		}
		lines = append(lines, sourceLine{number: n, text: text, fields: fields})
		addr += op.Size()
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	program := NewProgram()
	for _, l := range lines {
		op, _ := LookupInstruction(l.fields[0])
		inst, err := assembleLine(op, l.fields[1:], labels)
		if err != nil {
			return nil, &AssemblyError{l.number, l.text, err}
		}
		program.AddInstruction(inst)
	}
	return program, nil
}

func assembleLine(op Instruction, args []string, labels map[string]int) (*EncodedInstruction, error) {
	if !op.HasArgument() {
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no argument", op)
		}
		return NewEncodedInstruction(op, nil)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("%s takes exactly one argument", op)
	}

	var value field.Element
	switch op {
	case Call:
		target, ok := labels[args[0]]
		if !ok {
			v, err := parseImmediate(args[0])
			if err != nil {
				return nil, fmt.Errorf("undefined label %q", args[0])
			}
			value = v
			break
		}
		value = field.New(uint64(target))
	case Ecall:
		if n, ok := SyscallNames[args[0]]; ok {
			value = field.New(n)
			break
		}
		v, err := parseImmediate(args[0])
		if err != nil {
			return nil, fmt.Errorf("unknown syscall %q", args[0])
		}
		value = v
	default:
		v, err := parseImmediate(args[0])
		if err != nil {
			return nil, err
		}
		value = v
	}
	return NewEncodedInstruction(op, &value)
}

// parseImmediate accepts decimal, 0x hex and negative values. A negative
// value -x denotes the field element P-x.
func parseImmediate(s string) (field.Element, error) {
	neg := strings.HasPrefix(s, "-")
	raw := strings.TrimPrefix(s, "-")
	v, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return field.Zero, fmt.Errorf("invalid immediate %q: %w", s, err)
	}
	if v >= field.P {
		return field.Zero, fmt.Errorf("immediate %q is not a field element", s)
	}
	if neg && v != 0 {
		return field.New(field.P - v), nil
	}
	return field.New(v), nil
}

func stripComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
