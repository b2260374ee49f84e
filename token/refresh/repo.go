package refresh

import (
	"time"
)

// StoredRefreshToken represents the provider-side record of a refresh token.
// The client only receives the Token field (a random string). The access
// token fields track the most recently minted access token so logout can
// revoke it.
type StoredRefreshToken struct {
	Token             string    // The actual random token string (sent to client)
	UserID            string    // Owner of the token
	AccessTokenID     string    // jti of the last access token issued alongside
	AccessTokenExpiry time.Time // exp of that access token
	Iat               time.Time // issued at time
}

// Repo manages storage of refresh token metadata keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}
