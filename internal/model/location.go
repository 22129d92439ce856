package model

import "time"

// Location is a geocoded address. A row belongs either to one user
// (UserID set) or to one food post; rows are never updated in place.
type Location struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}
