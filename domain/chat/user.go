package chat

import "time"

// User is the public projection of an account, safe to return to any
// authenticated viewer. Credentials never leave the repository layer.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}
