// internal/shell/perm.go
//
// Symbolic permission strings.
//
// Site provisioning describes per-directory permissions as chmod-style
// symbolic strings ("u=rwx,g=rxs,o=").  These helpers convert those strings
// to mode bits so the startup audit can compare a path's actual mode against
// the required one.
package shell

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
)

var permFlags = map[byte]map[byte]fs.FileMode{
	'u': {'r': 0o400, 'w': 0o200, 'x': 0o100, 's': fs.ModeSetuid},
	'g': {'r': 0o040, 'w': 0o020, 'x': 0o010, 's': fs.ModeSetgid},
	'o': {'r': 0o004, 'w': 0o002, 'x': 0o001, 's': 0},
}

// ParseSymbolic converts "u=rwx,g=rx,o=" into mode bits.  Each clause is
// who=perms; an empty perms side clears that class.
func ParseSymbolic(symbolic string) (fs.FileMode, error) {
	var mode fs.FileMode
	for _, clause := range strings.Split(symbolic, ",") {
		who, perms, ok := strings.Cut(clause, "=")
		if !ok || len(who) != 1 {
			return 0, fmt.Errorf("bad permission clause %q in %q", clause, symbolic)
		}
		flags, ok := permFlags[who[0]]
		if !ok {
			return 0, fmt.Errorf("bad permission class %q in %q", who, symbolic)
		}
		for i := 0; i < len(perms); i++ {
			bit, ok := flags[perms[i]]
			if !ok {
				return 0, fmt.Errorf("bad permission flag %q in %q", perms[i], symbolic)
			}
			mode |= bit
		}
	}
	return mode, nil
}

// UGOMode returns a path's mode masked to the user, group, and other
// permission bits.
func UGOMode(path string) (fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Mode().Perm(), nil
}
