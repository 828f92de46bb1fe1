package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	numberPrefix    = "CART"
	randomSuffixLen = 6
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewOrderPrefix generates the shared order number prefix for one checkout:
// CART + unix millis + 6 random base36 characters.
func NewOrderPrefix(now time.Time) string {
	var sb strings.Builder
	sb.WriteString(numberPrefix)
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	for i := 0; i < randomSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Alphabet))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			sb.WriteByte(base36Alphabet[0])
			continue
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}
	return sb.String()
}

// OrderNumber derives the row-level number from the shared prefix and the
// 1-based line item position.
func OrderNumber(prefix string, position int) string {
	return fmt.Sprintf("%s-%d", prefix, position)
}
