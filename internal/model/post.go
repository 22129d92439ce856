package model

import "time"

type PostStatus string

const (
	PostAvailable PostStatus = "AVAILABLE"
	PostReserved  PostStatus = "RESERVED"
	PostCompleted PostStatus = "COMPLETED"
)

// FoodPost is a donor's offer of surplus food.
type FoodPost struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Quantity    string     `json:"quantity"` // free text, e.g. "3 trays"
	ExpiryDate  time.Time  `json:"expiryDate"`
	Status      PostStatus `json:"status"`
	DonorID     string     `json:"donorId"`
	LocationID  string     `json:"locationId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Location *Location    `json:"location,omitempty"`
	Donor    *Participant `json:"donor,omitempty"`
	Requests []Request    `json:"requests,omitempty"`
}
