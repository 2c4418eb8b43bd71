package port

import (
	"context"

	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

// Mailer delivers an HTML message to a set of email addresses
type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// PasswordHasher hashes and verifies user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare returns apperr.ErrUnauthenticated when the password does not match
	Compare(hash, password string) error
}

// TokenIssuer issues and verifies session tokens
type TokenIssuer interface {
	Issue(id entity.Identity) (string, error)

	// Parse returns the user ID carried by a valid token, or apperr.ErrUnauthenticated
	Parse(token string) (int64, error)
}
