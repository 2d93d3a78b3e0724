package entities

import (
	"time"

	"miniature_creator/identifiers"
)

type Collection struct {
	ID          identifiers.CollectionID `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}
