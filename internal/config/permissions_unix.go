//go:build unix

package config

import (
	"fmt"
	"os"
)

// exposedTo names who besides the owner can read path, or returns "" when
// the file is private or cannot be inspected.
func exposedTo(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	switch perm := info.Mode().Perm(); {
	case perm&0o004 != 0:
		return fmt.Sprintf("all users (mode %04o; run chmod 600 %s)", perm, path)
	case perm&0o040 != 0:
		return fmt.Sprintf("its group (mode %04o; run chmod 600 %s)", perm, path)
	}
	return ""
}
