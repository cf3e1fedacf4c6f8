package guest

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/vm"
)

// Assemble builds an image from assembler source. Besides instructions the
// source carries two directives:
//
//	.name adder
//	.module fleetcore.join@1
//
// Modules take apply slots in the order they are declared.
func Assemble(src string) (*Image, error) {
	img := &Image{}

	scanner := bufio.NewScanner(strings.NewReader(src))
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ".") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: directive %q takes one argument", n, fields[0])
		}
		switch fields[0] {
		case ".name":
			if img.Name != "" {
				return nil, fmt.Errorf("line %d: duplicate .name", n)
			}
			img.Name = fields[1]
		case ".module":
			ref, err := ParseModuleRef(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			img.Modules = append(img.Modules, ref)
		default:
			return nil, fmt.Errorf("line %d: unknown directive %q", n, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if img.Name == "" {
		return nil, fmt.Errorf("missing .name directive")
	}

	program, err := vm.Assemble(src)
	if err != nil {
		return nil, err
	}
	img.Program = program
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// ParseModuleRef parses name@version
func ParseModuleRef(s string) (vm.ModuleRef, error) {
	name, version, ok := strings.Cut(s, "@")
	if !ok || name == "" {
		return vm.ModuleRef{}, fmt.Errorf("module reference %q must be name@version", s)
	}
	v, err := strconv.ParseUint(version, 10, 32)
	if err != nil {
		return vm.ModuleRef{}, fmt.Errorf("module reference %q: bad version: %w", s, err)
	}
	return vm.ModuleRef{Name: name, Version: uint32(v)}, nil
}
