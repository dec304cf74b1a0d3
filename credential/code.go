package credential

import (
	"crypto/rand"
	"math/big"
	"time"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// DefaultCodeTTL bounds how long a verification code stays valid.
const DefaultCodeTTL = 15 * time.Minute

// CodeGenerator mints fixed-length numeric verification codes.
type CodeGenerator struct {
	TTL time.Duration
}

func NewCodeGenerator(ttl time.Duration) *CodeGenerator {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeGenerator{TTL: ttl}
}

// Generate returns a fresh numeric code and its expiry timestamp.
func (g *CodeGenerator) Generate() (string, time.Time, error) {
	code, err := randomDigits(CodeLength)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, time.Now().Add(g.TTL), nil
}

func randomDigits(n int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		buf[i] = digits[v.Int64()]
	}
	return string(buf), nil
}
