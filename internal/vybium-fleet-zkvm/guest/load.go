package guest

import (
	"fmt"
	"os"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// Load reads a .vimg artifact. A missing or corrupt artifact is an image
// load error.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "read image %s", path)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "decode image %s", path)
	}
	return img, nil
}

// LoadSource assembles a .vasm file
func LoadSource(path string) (*Image, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "read source %s", path)
	}
	img, err := Assemble(string(src))
	if err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "assemble %s", path)
	}
	return img, nil
}

// Save writes img as a .vimg artifact
func Save(path string, img *Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := os.WriteFile(path, img.Encode(), 0o644); err != nil {
		return fmt.Errorf("write image %s: %w", path, err)
	}
	return nil
}
