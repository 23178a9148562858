package shell

import (
	"crypto/rand"
	"math/big"
)

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a random alphanumeric password of length n.  The
// result is opaque and never re-derivable; callers must persist it if they
// need it again.
func GeneratePassword(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; provisioning credentials on such a host is worse than
			// stopping.
			panic(err)
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out)
}
