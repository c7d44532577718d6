package random

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"
)

const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Code returns a short human-readable code, used for room join codes.
func Code(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(letters)))
	runes := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			runes[i] = letters[0]
			continue
		}
		runes[i] = letters[n.Int64()]
	}
	return string(runes)
}

// Seed returns a crypto-sourced seed for math/rand generators. Shuffling a
// deck with math/rand keeps dealing reproducible in tests; the seed itself
// must not be guessable in production.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
