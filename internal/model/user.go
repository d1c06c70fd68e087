package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for new passwords
var PasswordCost = bcrypt.DefaultCost

// User represents an account that can sign in
type User struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	Email                string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:index_users_on_email" validate:"required,email,max=255"`
	PasswordDigest       string    `json:"-" gorm:"type:varchar(255);not null"`
	Password             string    `json:"-" gorm:"-" validate:"required,min=6,max=72"`
	PasswordConfirmation string    `json:"-" gorm:"-" validate:"eqfield=Password"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewUser validates the sign-up fields and hashes the password
func NewUser(email, password, confirmation string) (*User, error) {
	u := &User{
		Email:                NormalizeEmail(email),
		Password:             password,
		PasswordConfirmation: confirmation,
	}

	if errs := validateStruct(u); errs.Any() {
		return nil, errs
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordDigest = string(digest)
	u.Password = ""
	u.PasswordConfirmation = ""

	return u, nil
}

// Authenticate reports whether password matches the stored digest
func (u *User) Authenticate(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordDigest), []byte(password)) == nil
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
