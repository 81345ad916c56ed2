package service

import (
	"crypto/rand"
	"math/big"
)

const shortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// newShortCode draws n characters uniformly from a URL-safe alphabet.
func newShortCode(n int) (string, error) {
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = shortCodeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

func validShortCode(code string) bool {
	if code == "" || len(code) > 16 {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
