// Package names holds the one shared validity rule for every entity keyed by
// a short name (users, sites), plus the helpers that derive identifier-safe
// database usernames from a site shortname.
//
// The rule is deliberately strict: letters, digits, and hyphens only, 2–32
// characters, so every accepted name is simultaneously a valid Unix account
// name, Unix group name, and DNS label.
package names

import (
	"regexp"
	"strings"
)

// Limit is the maximum entity-name length, which is also the column width in
// the metadata store.
const Limit = 32

// MySQLUserLimit is the maximum MySQL account-name length.  MySQL has to be
// special.
const MySQLUserLimit = 16

var valid = regexp.MustCompile(`^[A-Za-z0-9-]{2,32}$`)

// Valid reports whether name satisfies the shared shape rule.
func Valid(name string) bool {
	return valid.MatchString(name)
}

// SanitizeIdentifier rewrites name so it is safe as a SQL role identifier:
// every character outside [A-Za-z0-9_] becomes an underscore.
func SanitizeIdentifier(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

// MySQLIdentifier is SanitizeIdentifier truncated to MySQL's account-name
// limit.
func MySQLIdentifier(name string) string {
	id := SanitizeIdentifier(name)
	if len(id) > MySQLUserLimit {
		id = id[:MySQLUserLimit]
	}
	return id
}
