package local

import (
	"context"
	"strings"
	"time"

	"github.com/envention-steve/union-ui-sub002/idp"
	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/envention-steve/union-ui-sub002/internal/utils"
	"github.com/envention-steve/union-ui-sub002/token"
	"github.com/envention-steve/union-ui-sub002/token/refresh"
	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const issuer = "union-local-idp"

var _ idp.Provider = (*Provider)(nil)

// accessClaims are the claims of access tokens minted by the local provider
type accessClaims struct {
	Email string   `json:"email"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Provider is a self-contained identity provider backed by an account repo.
// It is meant for development and tests.
type Provider struct {
	accounts       users.Repo
	signer         token.Signer
	refreshTokens  *refresh.Manager
	revoked        token.RevokedTokenCache
	accessTokenTTL time.Duration
	logger         zerolog.Logger
	nowFunc        func() time.Time
}

type Option func(*Provider)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

func WithRevokedTokenCache(cache token.RevokedTokenCache) Option {
	return func(p *Provider) {
		p.revoked = cache
	}
}

func New(accounts users.Repo, signer token.Signer, refreshTokens *refresh.Manager, accessTokenTTL time.Duration, opts ...Option) *Provider {
	p := &Provider{
		accounts:       accounts,
		signer:         signer,
		refreshTokens:  refreshTokens,
		revoked:        token.NewInMemoryRevokedTokenCache(),
		accessTokenTTL: accessTokenTTL,
		logger:         zerolog.Nop(),
		nowFunc:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Authenticate(_ context.Context, email, password string) (idp.TokenBundle, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return idp.TokenBundle{}, apperrors.Validation(apperrors.ErrMissingCredentials, "")
	}

	account, err := p.accounts.GetByEmail(email)
	if err != nil || account == nil || !account.CheckPassword(password) {
		return idp.TokenBundle{}, apperrors.Authentication(apperrors.ErrInvalidCredentials, "")
	}
	if account.Blocked {
		p.logger.Info().Str("email", account.User.Email).Msg("Login attempt on blocked account")
		return idp.TokenBundle{}, apperrors.Authentication(apperrors.ErrInvalidCredentials, apperrors.ErrAccountBlocked.Error())
	}

	return p.issue(account.User)
}

func (p *Provider) ValidateToken(_ context.Context, accessToken string) (users.User, error) {
	var claims accessClaims
	_, err := token.Parse(p.signer, accessToken, &claims,
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowFunc),
	)
	if err != nil {
		if apperrors.Is(err, jwt.ErrTokenExpired) {
			return users.User{}, apperrors.Authentication(apperrors.ErrTokenExpired, "")
		}
		return users.User{}, apperrors.Authentication(apperrors.ErrInvalidToken, err.Error())
	}
	if p.revoked.IsRevoked(claims.ID) {
		return users.User{}, apperrors.Authentication(apperrors.ErrTokenRevoked, "")
	}

	// The account may have been removed or blocked since the token was minted
	account, err := p.accounts.GetByID(claims.Subject)
	if err != nil || account == nil || account.Blocked {
		return users.User{}, apperrors.Authentication(apperrors.ErrInvalidToken, "unknown or blocked account")
	}
	return account.User, nil
}

// Refresh rotates the refresh token: the presented one is consumed and a new
// one is returned with the new access token.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (idp.TokenBundle, error) {
	stored, err := p.refreshTokens.Validate(refreshToken)
	if err != nil {
		return idp.TokenBundle{}, apperrors.Authentication(err, "")
	}

	account, err := p.accounts.GetByID(stored.UserID)
	if err != nil || account == nil || account.Blocked {
		_ = p.refreshTokens.Delete(stored.Token)
		return idp.TokenBundle{}, apperrors.Authentication(apperrors.ErrInvalidRefreshToken, "unknown or blocked account")
	}

	if err := p.refreshTokens.Delete(stored.Token); err != nil {
		return idp.TokenBundle{}, apperrors.Upstream(err, "failed to consume refresh token")
	}
	p.revokeAccessToken(stored)
	return p.issue(account.User)
}

// Logout consumes the refresh token and revokes the access token issued with
// it. Unknown tokens are ignored.
func (p *Provider) Logout(_ context.Context, refreshToken string) error {
	stored, err := p.refreshTokens.Validate(refreshToken)
	if err != nil {
		return nil
	}
	if err := p.refreshTokens.Delete(stored.Token); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to delete refresh token on logout")
	}
	p.revokeAccessToken(stored)
	p.revoked.Cleanup()
	return nil
}

func (p *Provider) revokeAccessToken(stored *refresh.StoredRefreshToken) {
	if err := p.revoked.Add(stored.AccessTokenID, stored.AccessTokenExpiry); err != nil {
		p.logger.Warn().Err(err).Str("jti", stored.AccessTokenID).Msg("Failed to revoke access token")
	}
}

func (p *Provider) issue(user users.User) (idp.TokenBundle, error) {
	now := p.nowFunc()
	expiresAt := now.Add(p.accessTokenTTL)
	jti := uuid.NewString()

	accessToken, err := p.signer.Sign(accessClaims{
		Email: user.Email,
		Name:  user.Name,
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	})
	if err != nil {
		return idp.TokenBundle{}, apperrors.Upstream(err, "failed to sign access token")
	}

	refreshToken, err := p.refreshTokens.Create(user.ID, jti, expiresAt)
	if err != nil {
		return idp.TokenBundle{}, apperrors.Upstream(err, "failed to create refresh token")
	}

	return idp.TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(p.accessTokenTTL / time.Second),
	}, nil
}

// Seed parses accounts formatted email:password:name:role|role and stores
// them, separated by commas. Name and roles are optional.
func Seed(accounts users.Repo, seed string) (int, error) {
	count := 0
	for _, entry := range strings.Split(seed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return count, apperrors.Validation(apperrors.ErrMissingCredentials, "malformed local user entry")
		}
		hash, err := users.HashPassword(parts[1])
		if err != nil {
			return count, apperrors.Wrapf(err, "failed to hash password for %s", parts[0])
		}
		account := &users.Account{
			User:         users.User{Email: parts[0]},
			PasswordHash: hash,
		}
		if len(parts) > 2 {
			account.User.Name = parts[2]
		}
		if len(parts) > 3 {
			account.User.Roles = utils.StringSliceClaim(strings.ReplaceAll(parts[3], "|", " "))
		}
		if err := accounts.Upsert(account); err != nil {
			return count, apperrors.Wrapf(err, "failed to store local user %s", parts[0])
		}
		count++
	}
	return count, nil
}
