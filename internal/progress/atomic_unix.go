//go:build !windows

package progress

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile writes to a temporary file in the same directory, syncs it
// and renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
