package models

import "time"

// RequestStatus is the lifecycle state of an AccessRequest
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestRevoked  RequestStatus = "revoked"
)

// IsActive reports whether the status blocks a new request for the same resource
func (s RequestStatus) IsActive() bool {
	return s == RequestPending || s == RequestApproved
}

// CanTransitionTo reports whether moving from s to next is a legal decision
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch next {
	case RequestApproved, RequestRejected:
		return s == RequestPending
	case RequestRevoked:
		return s == RequestApproved
	default:
		return false
	}
}

// ParseDecision validates a decision value supplied by a caller
func ParseDecision(s string) (RequestStatus, bool) {
	switch RequestStatus(s) {
	case RequestApproved, RequestRejected, RequestRevoked:
		return RequestStatus(s), true
	}
	return "", false
}

// AccessRequest asks an administrator for access to a protected resource
type AccessRequest struct {
	ID             string        `json:"id"`
	RequesterID    string        `json:"requester_id"`
	RequesterEmail string        `json:"requester_email"`
	ResourceID     string        `json:"resource_id"`
	Status         RequestStatus `json:"status"`
	RequestedAt    time.Time     `json:"requested_at"`
	DecidedAt      *time.Time    `json:"decided_at,omitempty"`
	DecidedBy      *string       `json:"decided_by,omitempty"`
}

// Clone returns a deep copy
func (r *AccessRequest) Clone() *AccessRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	if r.DecidedBy != nil {
		s := *r.DecidedBy
		c.DecidedBy = &s
	}
	return &c
}
