package models

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionUndo   AuditAction = "undo"
)

type AuditLog struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID   string `json:"userId"`
	UserName string `json:"userName"` // denormalized

	// e.g. "resident"
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`

	Action      AuditAction `json:"action"`
	Description string      `json:"description"`

	// Entity state around the change; null when not applicable.
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`

	// Set when this entry was produced by an undo.
	Undone bool `json:"undone"`

	IsUndone bool       `json:"isUndone"`
	UndoneBy *string    `json:"undoneBy,omitempty"`
	UndoneAt *time.Time `json:"undoneAt,omitempty"`
}
