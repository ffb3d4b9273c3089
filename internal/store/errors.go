package store

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrPeerNotFound indicates that peer was not found
	ErrPeerNotFound = errors.New("peer not found")

	// ErrSessionNotFound indicates that sync session was not found
	ErrSessionNotFound = errors.New("session not found")

	// ErrIdentityNotFound indicates that node identity was not created yet
	ErrIdentityNotFound = errors.New("node identity not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
