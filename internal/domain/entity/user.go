package entity

import "time"

// User is an account that can sign in and act on receipts
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	SectionID    *int64    `json:"section_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity returns the acting identity for this user
func (u *User) Identity() Identity {
	return Identity{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		SectionID: u.SectionID,
	}
}

// Section is a named organizational unit that receipts and managers belong to
type Section struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
