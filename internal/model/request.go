package model

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCompleted RequestStatus = "COMPLETED"
)

// Request links a receiver to a post. It is only ever read here, as part
// of a donor's post history.
type Request struct {
	ID         string        `json:"id"`
	PostID     string        `json:"postId"`
	ReceiverID string        `json:"receiverId"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	Receiver   *Participant  `json:"receiver,omitempty"`
}
