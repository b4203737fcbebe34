package executor

import (
	"os"
	"slices"

	"github.com/armaan1620/tsh/internal/errors"
)

// handles owns the descriptors opened while launching a pipeline. A
// descriptor is handed to exactly one child; once that child has been
// started the parent's copy is released. closeAll releases whatever is
// still owned, so every exit path of a launch closes every descriptor.
type handles struct {
	owned []*os.File
}

// own records f as owned by the launcher and returns it.
func (h *handles) own(f *os.File) *os.File {
	h.owned = append(h.owned, f)
	return f
}

// release closes the parent's copy of f. Files the launcher doesn't own,
// such as the shell's own standard streams, are left open.
func (h *handles) release(f *os.File) error {
	i := slices.Index(h.owned, f)
	if f == nil || i < 0 {
		return nil
	}
	h.owned = slices.Delete(h.owned, i, i+1)
	return f.Close()
}

// closeAll releases every descriptor still owned.
func (h *handles) closeAll() error {
	var errs []error
	for _, f := range h.owned {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.owned = nil
	return errors.Join(errs...)
}
