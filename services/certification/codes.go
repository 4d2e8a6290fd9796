package certification

import (
	"encoding/base32"
	"strings"
	"time"

	"github.com/google/uuid"
)

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Codes generates the public verification code and the printed certificate
// number. Both must be unguessable; uniqueness is enforced by the database.
type Codes func(issuedAt time.Time) (verificationCode, certificateNumber string, err error)

// RandomCodes draws both values from crypto/rand via uuid v4: a 26 character
// base32 verification code (122 random bits) and CERT-YYYYMMDD-XXXXXXXX.
func RandomCodes(issuedAt time.Time) (string, string, error) {
	codeID, err := uuid.NewRandom()
	if err != nil {
		return "", "", err
	}
	numberID, err := uuid.NewRandom()
	if err != nil {
		return "", "", err
	}

	code := codeEncoding.EncodeToString(codeID[:])
	number := "CERT-" + issuedAt.UTC().Format("20060102") + "-" + codeEncoding.EncodeToString(numberID[:])[:8]
	return code, number, nil
}

// NormalizeCode accepts codes typed by humans: surrounding spaces, lower
// case and dashes are ignored.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}
