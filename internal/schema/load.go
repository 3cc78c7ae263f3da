package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed catalog.cue
var defaultCatalogCUE []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog: a compact energy-domain schema
// carrying the root System class, the four auxiliary tag classes, and a
// small set of generator/fuel/node/region collections and properties.
// The result is shared; callers must not mutate it.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadBytes(defaultCatalogCUE, "catalog.cue")
	})
	return defaultCatalog, defaultErr
}

// Load reads and compiles a catalog definition from a CUE file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return LoadBytes(data, path)
}

// LoadBytes compiles a catalog definition from CUE source.
// The filename is used in error positions only.
func LoadBytes(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}
