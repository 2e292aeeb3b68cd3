package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	OrderCodeLength     = 6
	ReferenceCodeLength = 8

	orderCodeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewOrderCode returns a buyer-facing code such as "ECBDJI".
func NewOrderCode() (string, error) {
	return randomCode(orderCodeAlphabet, OrderCodeLength)
}

func NewReferenceCode() (string, error) {
	return randomCode(referenceCodeAlphabet, ReferenceCodeLength)
}

func randomCode(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random code: %w", err)
		}
		b[i] = alphabet[k.Int64()]
	}
	return string(b), nil
}
