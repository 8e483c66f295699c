package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/roach88/spikeraster/internal/loader"
	"github.com/roach88/spikeraster/internal/raster"
	"github.com/roach88/spikeraster/internal/store"
)

var errInputAndDB = errors.New("give either an input file or --db, not both")

// openStore opens an existing database. store.Open would create a
// missing one.
func openStore(path string) (*store.Store, error) {
	ok, err := afero.Exists(afero.NewOsFs(), path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &loader.LoadError{Code: loader.ErrCodeNotFound, Path: path, Message: "database not found"}
	}
	return store.Open(path)
}

// resolveInput builds the normalizer and input for a command's
// positional input or --db flag. The returned close func is never nil.
func resolveInput(fs afero.Fs, args []string, sel *selectionFlags) (*raster.Normalizer, raster.RawInput, func(), error) {
	noop := func() {}
	switch {
	case len(args) > 0 && sel.DB != "":
		return nil, nil, noop, errInputAndDB
	case sel.Dataset != "" && sel.DB == "":
		return nil, nil, noop, fmt.Errorf("--dataset requires --db")
	case len(args) > 0:
		return &raster.Normalizer{Loader: loader.New(fs)}, raster.FileRef{Path: args[0]}, noop, nil
	case sel.DB != "":
		st, err := openStore(sel.DB)
		if err != nil {
			return nil, nil, noop, err
		}
		n := &raster.Normalizer{Source: store.NewSource(st, sel.Dataset)}
		return n, raster.Absent{}, func() { st.Close() }, nil
	default:
		return &raster.Normalizer{}, raster.Absent{}, noop, nil
	}
}
