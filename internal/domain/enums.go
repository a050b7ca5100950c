// Package domain defines the core domain models for the sync server.
package domain

// UserStatus represents the connection visibility of a user in a room.
type UserStatus string

const (
	UserOnline  UserStatus = "ONLINE"
	UserOffline UserStatus = "OFFLINE"
)
