package model

import "time"

// Node is a stored proxy endpoint. URL is usually a proxy link but may be a
// subscription URL or arbitrary text; consumers must tolerate that.
type Node struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Collection is a named group of node references, shareable as a subscription.
type Collection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	NodeIDs   []string   `json:"nodeIds"`
	UserID    string     `json:"userId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// UserToken grants user-page access to one collection.
type UserToken struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CollectionID string    `json:"collectionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is issued by a successful credential check.
type Session struct {
	Token        string    `json:"token"`
	Username     string    `json:"username"`
	CollectionID string    `json:"collectionId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
