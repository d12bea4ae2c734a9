package utils

import (
	"crypto/rand"
	"math/big"
)

const alnumCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenAlnum returns a random alphanumeric string of the requested length
func GenAlnum(length int) string {
	b := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alnumCharset))))
		if err != nil {
			panic("failed to generate secure random string")
		}
		b[i] = alnumCharset[n.Int64()]
	}
	return string(b)
}
