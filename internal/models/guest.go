package models

import "time"

type GuestStatus string

const (
	GuestPending  GuestStatus = "pending"
	GuestArrived  GuestStatus = "arrived"
	GuestDeparted GuestStatus = "departed"
	GuestExpired  GuestStatus = "expired"
)

type Guest struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone"`
	Purpose         string      `json:"purpose"`
	HostResidentID  string      `json:"hostResidentId"`
	HostName        string      `json:"hostName"`
	ExpectedArrival time.Time   `json:"expectedArrival"`
	ActualArrival   *time.Time  `json:"actualArrival,omitempty"`
	Departure       *time.Time  `json:"departure,omitempty"`
	QRCode          string      `json:"qrCode,omitempty"`
	Status          GuestStatus `json:"status"`
}
