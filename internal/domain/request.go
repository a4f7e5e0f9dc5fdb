package domain

// RequestStatus is the stored state of a pickup request. Claims are accepted
// on the spot, so only RequestAccepted is written today. Pending and rejected
// complete the vocabulary the requests table admits.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)
