package models

import "github.com/google/uuid"

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"password,omitempty"`
	DisplayName string    `json:"display_name"`

	IsGuest bool `json:"is_guest"`
}
