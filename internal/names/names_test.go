package names

import "testing"

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"clubx", true},
		{"j-doe", true},
		{"AB", true},
		{"a", false},                // below minimum length
		{"", false},
		{"under_score", false},      // underscores are not hostname-safe
		{"space name", false},
		{"dots.are.out", false},
		{"café", false},
		{"abcdefghijklmnopqrstuvwxyz012345", true},   // exactly 32
		{"abcdefghijklmnopqrstuvwxyz0123456", false}, // 33
	}
	for _, c := range cases {
		if got := Valid(c.name); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	if got := SanitizeIdentifier("club-x"); got != "club_x" {
		t.Errorf("SanitizeIdentifier(club-x) = %q", got)
	}
	if got := SanitizeIdentifier("plain9"); got != "plain9" {
		t.Errorf("SanitizeIdentifier(plain9) = %q", got)
	}
}

func TestMySQLIdentifier(t *testing.T) {
	got := MySQLIdentifier("a-very-long-site-shortname")
	if got != "a_very_long_site" {
		t.Errorf("MySQLIdentifier = %q, want a_very_long_site", got)
	}
	if len(got) != MySQLUserLimit {
		t.Errorf("len = %d, want %d", len(got), MySQLUserLimit)
	}
}
