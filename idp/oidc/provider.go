package oidcidp

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/envention-steve/union-ui-sub002/idp"
	"github.com/envention-steve/union-ui-sub002/internal/config"
	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/envention-steve/union-ui-sub002/internal/utils"
	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var _ idp.Provider = (*Provider)(nil)

// Provider talks to a remote OpenID Connect provider.
// Discovery happens on first use and is cached once it succeeds.
type Provider struct {
	issuerURL    string
	clientID     string
	clientSecret string
	scopes       []string
	httpClient   *http.Client
	logger       zerolog.Logger
	nowFunc      func() time.Time

	lock      sync.Mutex
	discovery *discovered
}

type discovered struct {
	provider           *oidc.Provider
	oauth2Config       *oauth2.Config
	revocationEndpoint string
}

type Option func(*Provider)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

func New(cfg config.IdentityProviderConfig, opts ...Option) *Provider {
	p := &Provider{
		issuerURL:    cfg.GetIdPIssuerURL(),
		clientID:     cfg.GetIdPClientID(),
		clientSecret: cfg.GetIdPClientSecret(),
		scopes:       cfg.GetIdPScopes(),
		httpClient:   &http.Client{Timeout: cfg.GetIdPTimeout()},
		logger:       zerolog.Nop(),
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.httpClient)
}

func (p *Provider) discover(ctx context.Context) (*discovered, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.discovery != nil {
		return p.discovery, nil
	}

	provider, err := oidc.NewProvider(p.clientContext(ctx), p.issuerURL)
	if err != nil {
		return nil, apperrors.Upstream(err, "failed to discover identity provider")
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to read provider metadata")
	}

	p.discovery = &discovered{
		provider: provider,
		oauth2Config: &oauth2.Config{
			ClientID:     p.clientID,
			ClientSecret: p.clientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       p.scopes,
		},
		revocationEndpoint: extra.RevocationEndpoint,
	}
	p.logger.Info().Str("issuer", p.issuerURL).Msg("Identity provider discovered")
	return p.discovery, nil
}

// Authenticate uses the resource owner password grant
func (p *Provider) Authenticate(ctx context.Context, email, password string) (idp.TokenBundle, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return idp.TokenBundle{}, apperrors.Validation(apperrors.ErrMissingCredentials, "")
	}
	d, err := p.discover(ctx)
	if err != nil {
		return idp.TokenBundle{}, err
	}

	tok, err := d.oauth2Config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return idp.TokenBundle{}, classifyTokenError(err, apperrors.ErrInvalidCredentials)
	}
	return p.bundle(tok)
}

func (p *Provider) ValidateToken(ctx context.Context, accessToken string) (users.User, error) {
	if accessToken == "" {
		return users.User{}, apperrors.Authentication(apperrors.ErrInvalidToken, "access token is empty")
	}
	d, err := p.discover(ctx)
	if err != nil {
		return users.User{}, err
	}

	info, err := d.provider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return users.User{}, classifyUserInfoError(err)
	}

	claims := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return users.User{}, apperrors.Upstream(err, "malformed userinfo response")
	}
	user := userFromClaims(info.Subject, info.Email, claims)
	if err := user.Validate(); err != nil {
		return users.User{}, apperrors.Authentication(apperrors.ErrIdentityNotConfirmed, err.Error())
	}
	return user, nil
}

// Refresh exchanges the refresh token. Providers that do not rotate refresh
// tokens keep the presented one.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (idp.TokenBundle, error) {
	if refreshToken == "" {
		return idp.TokenBundle{}, apperrors.Authentication(apperrors.ErrMissingRefreshToken, "")
	}
	d, err := p.discover(ctx)
	if err != nil {
		return idp.TokenBundle{}, err
	}

	tok, err := d.oauth2Config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return idp.TokenBundle{}, classifyTokenError(err, apperrors.ErrInvalidRefreshToken)
	}
	return p.bundle(tok)
}

// Logout revokes the refresh token (RFC 7009) when the provider supports it
func (p *Provider) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	d, err := p.discover(ctx)
	if err != nil {
		return err
	}
	if d.revocationEndpoint == "" {
		p.logger.Debug().Msg("Identity provider has no revocation endpoint, skipping remote logout")
		return nil
	}

	form := url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.revocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.Upstream(err, "failed to build revocation request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(p.clientID), url.QueryEscape(p.clientSecret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Upstream(err, "revocation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Upstream(apperrors.ErrUpstreamUnavailable, "revocation endpoint returned "+resp.Status)
	}
	return nil
}

func (p *Provider) bundle(tok *oauth2.Token) (idp.TokenBundle, error) {
	if tok.AccessToken == "" {
		return idp.TokenBundle{}, apperrors.Upstream(apperrors.ErrUpstreamUnavailable, "token response has no access token")
	}
	expiresIn := int(tok.ExpiresIn)
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = int(tok.Expiry.Sub(p.nowFunc()) / time.Second)
	}
	return idp.TokenBundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// classifyTokenError maps token endpoint failures: a 400 or 401 answer is a
// rejection, anything else is an upstream failure.
func classifyTokenError(err error, rejected error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		switch retrieveErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return apperrors.Authentication(rejected, retrieveErr.ErrorCode)
		}
		return apperrors.Upstream(err, "token endpoint error")
	}
	return apperrors.Upstream(err, "token endpoint unreachable")
}

// classifyUserInfoError relies on go-oidc reporting non-200 answers as
// "<status>: <body>".
func classifyUserInfoError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperrors.Upstream(err, "userinfo endpoint unreachable")
	}
	msg := err.Error()
	for _, prefix := range []string{"400", "401", "403"} {
		if strings.HasPrefix(msg, prefix) {
			return apperrors.Authentication(apperrors.ErrInvalidToken, msg)
		}
	}
	return apperrors.Upstream(err, "userinfo request failed")
}

func userFromClaims(subject, email string, claims map[string]any) users.User {
	user := users.User{
		ID:    subject,
		Email: email,
	}
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	}
	if roles, ok := claims["roles"]; ok {
		user.Roles = utils.StringSliceClaim(roles)
	} else if groups, ok := claims["groups"]; ok {
		user.Roles = utils.StringSliceClaim(groups)
	}

	for key, value := range claims {
		switch key {
		case "sub", "email", "name", "roles", "groups":
			continue
		}
		if user.Attributes == nil {
			user.Attributes = map[string]any{}
		}
		user.Attributes[key] = value
	}
	return user
}
