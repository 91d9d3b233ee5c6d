//go:build windows

package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/samber/lo"
)

var broadPrincipals = []string{"everyone", "authenticated users", `builtin\users`}

// exposedTo inspects the ACL with icacls and names the first broad
// principal holding a grant on path.
func exposedTo(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	out, err := exec.Command("icacls", path).Output()
	if err != nil {
		return ""
	}
	acl := strings.ToLower(string(out))
	principal, ok := lo.Find(broadPrincipals, func(p string) bool {
		return strings.Contains(acl, p+":")
	})
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s (run icacls %q /inheritance:r /grant:r %%USERNAME%%:F)", principal, path)
}
