package models

import "time"

// CredentialPayload is the JSON text carried inside a resident's QR code.
type CredentialPayload struct {
	ResidentID string     `json:"residentId"`
	UnitNumber string     `json:"unitNumber"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`
}

// GuestPass is the JSON text carried inside a guest's QR code.
type GuestPass struct {
	GuestID        string     `json:"guestId"`
	HostResidentID string     `json:"hostResidentId"`
	IssuedAt       time.Time  `json:"issuedAt"`
	ValidUntil     *time.Time `json:"validUntil,omitempty"`
}
