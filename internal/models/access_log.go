package models

import "time"

type AccessType string

const (
	AccessEntry AccessType = "entry"
	AccessExit  AccessType = "exit"
)

func (t AccessType) Valid() bool {
	return t == AccessEntry || t == AccessExit
}

type AccessMethod string

const (
	AccessMethodQRCode AccessMethod = "qr_code"
	AccessMethodManual AccessMethod = "manual"
	AccessMethodGuest  AccessMethod = "guest"
)

func (m AccessMethod) Valid() bool {
	switch m {
	case AccessMethodQRCode, AccessMethodManual, AccessMethodGuest:
		return true
	}
	return false
}

// AccessLog is an append-only gate event. ResidentName and UnitNumber are
// copied at write time; ResidentID is not checked against the directory.
type AccessLog struct {
	ID                string       `json:"id"`
	ResidentID        string       `json:"residentId"`
	ResidentName      string       `json:"residentName"`
	UnitNumber        string       `json:"unitNumber"`
	Timestamp         time.Time    `json:"timestamp"`
	AccessType        AccessType   `json:"accessType"`
	Method            AccessMethod `json:"method"`
	Location          string       `json:"location"`
	SecurityPersonnel string       `json:"securityPersonnel,omitempty"`
	Notes             string       `json:"notes,omitempty"`
}
