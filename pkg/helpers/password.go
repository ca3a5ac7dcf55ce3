package helpers

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor for stored credentials.
const PasswordCost = 12

// HashPassword hashes the plain text password using bcrypt
func HashPassword(plain string) (string, error) {
	return HashPasswordCost(plain, PasswordCost)
}

// bcrypt only reads the first 72 bytes; newer x/crypto rejects longer input
// instead of truncating, while accounts accept up to 128 characters.
func bcryptInput(plain string) []byte {
	b := []byte(plain)
	if len(b) > 72 {
		return b[:72]
	}
	return b
}

// HashPasswordCost lets tests trade strength for speed.
func HashPasswordCost(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CompareHashAndPassword compares a bcrypt hash with a plain password
func CompareHashAndPassword(hash string, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain)) == nil
}

// dummyHash is compared against when the account does not exist so that
// unknown emails cost the same as wrong passwords.
var dummyHash, _ = HashPassword("cantina-online-timing-equalizer")

func CompareDummy(plain string) {
	_ = CompareHashAndPassword(dummyHash, plain)
}
