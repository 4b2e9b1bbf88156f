package model

import (
	"time"

	"github.com/google/uuid"
)

// Phone is carried through untouched; the service never inspects it.
type Phone struct {
	Number              string `json:"number"`
	InternationalNumber string `json:"internationalNumber"`
	NationalNumber      string `json:"nationalNumber"`
	E164Number          string `json:"e164Number"`
	CountryCode         string `json:"countryCode"`
	DialCode            string `json:"dialCode"`
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"passwordHash"`
	DateOfBirth  string    `gorm:"not null" json:"dateOfBirth"`
	Phone        *Phone    `gorm:"serializer:json" json:"phone,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LoginResult struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}
