package model

import "time"

// SeedMessage is the first message of every chat, attributed to the user
// who opened it.
const SeedMessage = "Chat started"

// Chat is the conversation between a post's donor and one receiver.
// There is at most one chat per (PostID, DonorID, ReceiverID).
type Chat struct {
	ID         string      `json:"id"`
	PostID     string      `json:"postId"`
	DonorID    string      `json:"donorId"`
	ReceiverID string      `json:"receiverId"`
	CreatedAt  time.Time   `json:"createdAt"`
	Messages   []Message   `json:"messages"`
	Donor      Participant `json:"donor"`
	Receiver   Participant `json:"receiver"`
}

// Message is an immutable entry in a chat.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
