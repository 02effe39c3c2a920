package random

import (
	"crypto/rand"
	"math/big"
)

// letters skips look-alikes (0/O, 1/I) so codes can be read aloud.
const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Code returns a random join code of the given length.
func Code(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(letters)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			out[i] = letters[0]
			continue
		}
		out[i] = letters[n.Int64()]
	}
	return string(out)
}
