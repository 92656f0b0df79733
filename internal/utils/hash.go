package utils

import "golang.org/x/crypto/bcrypt"

// PasswordHashCost is the minimum bcrypt cost factor for stored credentials.
const PasswordHashCost = 12

// HashPassword returns a bcrypt hash of the provided password. Costs below
// the floor are clamped up to it.
func HashPassword(password string, cost int) (string, error) {
	if cost < PasswordHashCost {
		cost = PasswordHashCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
