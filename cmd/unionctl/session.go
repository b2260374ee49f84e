package main

import (
	"net/url"

	"github.com/envention-steve/union-ui-sub002/client"
	"github.com/envention-steve/union-ui-sub002/client/store"
	"github.com/envention-steve/union-ui-sub002/client/tokencache"
	"github.com/rs/zerolog/log"
)

// cliSession owns one client with its token cache and session store
type cliSession struct {
	flags  *globalFlags
	api    *client.Client
	tokens *tokencache.Cache
	store  *store.Store
}

func openSession(flags *globalFlags) (*cliSession, error) {
	api, err := client.New(flags.baseURL,
		client.WithTimeout(flags.timeout),
		client.WithLogger(log.Logger),
	)
	if err != nil {
		return nil, err
	}
	if err := api.LoadCookies(flags.cookieFile); err != nil {
		return nil, err
	}
	tokens := tokencache.New(api)
	return &cliSession{
		flags:  flags,
		api:    api,
		tokens: tokens,
		store:  store.New(api, tokens),
	}, nil
}

// close persists whatever cookie the server left in the jar
func (s *cliSession) close() error {
	s.store.Close()
	return s.api.SaveCookies(s.flags.cookieFile)
}

// expiredLoginURL is where a browser would be sent once the session is gone
func (s *cliSession) expiredLoginURL() string {
	u := s.api.BaseURL()
	u.Path = "/login"
	u.RawQuery = url.Values{"error": {"session-expired"}}.Encode()
	return u.String()
}
