package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

const (
	shortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	shortCodeLength   = 7
	shortCodeLongLen  = 10
	shortCodeAttempts = 5
	hashLength        = 12
	maxCreateAttempts = 5
)

// CodeGenerator returns a random short code of the requested length.
type CodeGenerator func(length int) (string, error)

func randomShortCode(length int) (string, error) {
	limit := big.NewInt(int64(len(shortCodeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = shortCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// computeHash derives the public scan hash. It is one-way: the owner and
// destination cannot be recovered from it.
func computeHash(userID, url string, at time.Time) string {
	sum := sha256.Sum256([]byte(userID + "-" + url + "-" + strconv.FormatInt(at.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:hashLength]
}
