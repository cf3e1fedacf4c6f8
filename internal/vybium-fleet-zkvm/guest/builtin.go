package guest

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

//go:embed programs/*.vasm
var programs embed.FS

var (
	builtinOnce   sync.Once
	builtinImages map[string]*Image
	builtinErr    error
)

func loadBuiltins() {
	builtinImages = make(map[string]*Image)
	entries, err := programs.ReadDir("programs")
	if err != nil {
		builtinErr = err
		return
	}
	for _, e := range entries {
		src, err := programs.ReadFile(path.Join("programs", e.Name()))
		if err != nil {
			builtinErr = err
			return
		}
		img, err := Assemble(string(src))
		if err != nil {
			builtinErr = fmt.Errorf("builtin %s: %w", e.Name(), err)
			return
		}
		if want := strings.TrimSuffix(e.Name(), ".vasm"); img.Name != want {
			builtinErr = fmt.Errorf("builtin %s declares name %q", e.Name(), img.Name)
			return
		}
		builtinImages[img.Name] = img
	}
}

// Builtin returns the embedded guest image with the given name. Images are
// shared and must not be modified.
func Builtin(name string) (*Image, error) {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		return nil, builtinErr
	}
	img, ok := builtinImages[name]
	if !ok {
		return nil, fmt.Errorf("no builtin guest %q", name)
	}
	return img, nil
}

// MustBuiltin is Builtin for names known at compile time
func MustBuiltin(name string) *Image {
	img, err := Builtin(name)
	if err != nil {
		panic(err)
	}
	return img
}

// Builtins lists the embedded guest names
func Builtins() []string {
	builtinOnce.Do(loadBuiltins)
	names := make([]string, 0, len(builtinImages))
	for name := range builtinImages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForCommand returns the fleet guest that runs command c
func ForCommand(c fleetcore.Command) (*Image, error) {
	return Builtin(c.String())
}
