package utils

import (
	"fmt"
	"io"
	"os"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

// ReadPiped reads at most limit bytes piped into f, usually os.Stdin.
//
// Returns ErrConfig if f is a terminal, carries no data or holds more than
// limit bytes, and ErrIO if it cannot be read.
func ReadPiped(f *os.File, limit int64) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", kerrors.ErrIO, f.Name(), err)
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return nil, fmt.Errorf("%w: nothing piped to %s", kerrors.ErrConfig, f.Name())
	}

	// One extra byte tells an input of exactly limit bytes from a longer one.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIO, f.Name(), err)
	}
	switch {
	case len(data) == 0:
		return nil, fmt.Errorf("%w: %s is empty", kerrors.ErrConfig, f.Name())
	case int64(len(data)) > limit:
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", kerrors.ErrConfig, f.Name(), limit)
	}
	return data, nil
}
