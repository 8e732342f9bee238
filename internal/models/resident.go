package models

import "time"

type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

type VehicleInfo struct {
	LicensePlate string `json:"licensePlate"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Color        string `json:"color"`
}

type Resident struct {
	ID               string           `json:"id"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	Email            string           `json:"email"`
	Phone            string           `json:"phone"`
	UnitNumber       string           `json:"unitNumber"`
	Building         string           `json:"building"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	VehicleInfo      *VehicleInfo     `json:"vehicleInfo,omitempty"`
	QRCode           string           `json:"qrCode"` // data URI of the rendered credential
	IsActive         bool             `json:"isActive"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Photo            string           `json:"photo,omitempty"`
}

func (r Resident) FullName() string {
	return r.FirstName + " " + r.LastName
}
