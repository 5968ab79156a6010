package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newBookingReference 產生 BK + 毫秒時間戳末 8 碼 + 4 碼隨機 base36
func newBookingReference(now time.Time) (string, error) {
	suffix := make([]byte, 4)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate booking reference: %w", err)
		}
		suffix[i] = referenceAlphabet[n.Int64()]
	}
	return fmt.Sprintf("BK%08d%s", now.UnixMilli()%100_000_000, suffix), nil
}
