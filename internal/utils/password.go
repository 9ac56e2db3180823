package utils

import "golang.org/x/crypto/bcrypt"

// HashSecret returns a bcrypt hash using the given cost. It is used for
// both login passwords and transaction PINs; bcrypt's per-hash salt and
// deliberately slow comparison are exactly what a short PIN needs.
func HashSecret(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifySecret safely compares a bcrypt hash and a plain secret.
func VerifySecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidPin reports whether the candidate is an acceptable transaction
// PIN: 4 to 6 ASCII digits.
func ValidPin(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
