package models

import "time"

// Record holds one record-store collection as a JSON array when the store
// runs on Postgres.
type Record struct {
	Collection string    `gorm:"primaryKey;size:64" json:"collection"`
	Payload    string    `gorm:"type:jsonb;not null" json:"payload"`
	UpdatedAt  time.Time `json:"updated_at"`
}
