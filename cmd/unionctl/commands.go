package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/envention-steve/union-ui-sub002/client/scheduler"
	"github.com/envention-steve/union-ui-sub002/client/store"
	"github.com/envention-steve/union-ui-sub002/token"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errSessionExpired = errors.New("session expired")

// withSession runs fn against an open session and always persists the cookie jar
func withSession(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, s *cliSession) error) (returnError error) {
	s, err := openSession(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil && returnError == nil {
			returnError = err
		}
	}()
	return fn(cmd.Context(), s)
}

func loginCmd(flags *globalFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session cookie",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("UNION_PASSWORD")
			}
			return withSession(cmd, flags, func(ctx context.Context, s *cliSession) error {
				if err := s.store.Login(ctx, email, password); err != nil {
					return errors.New(s.store.State().Error)
				}
				printState(s.store.State())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default $UNION_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func whoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session owner, refreshing the session when needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *cliSession) error {
				if !s.store.CheckAuthAndRefresh(ctx) {
					warn("Not logged in: %s", s.expiredLoginURL())
					return errSessionExpired
				}
				printState(s.store.State())
				return nil
			})
		},
	}
}

func tokenCmd(flags *globalFlags) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the current access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *cliSession) error {
				var token string
				if refresh {
					token = s.tokens.RefreshTokenIfNeeded(ctx)
				} else {
					token = s.tokens.CurrentToken(ctx)
				}
				if token == "" {
					return errors.New("no access token available, log in first")
				}
				fmt.Println(token)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Refresh the session before reading the token")
	return cmd
}

func refreshCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *cliSession) error {
				if err := s.store.RefreshSession(ctx); err != nil {
					return err
				}
				printState(s.store.State())
				return nil
			})
		},
	}
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *cliSession) error {
				s.store.Logout(ctx)
				success("Logged out")
				return nil
			})
		},
	}
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var checkInterval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive until interrupted or it expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSession(cmd, flags, func(_ context.Context, s *cliSession) error {
				if !s.store.CheckAuthAndRefresh(ctx) {
					warn("Not logged in: %s", s.expiredLoginURL())
					return errSessionExpired
				}
				printState(s.store.State())

				expired := make(chan struct{}, 1)
				notify := func() {
					select {
					case expired <- struct{}{}:
					default:
					}
				}
				sched := scheduler.New(s.store,
					scheduler.WithCheckInterval(checkInterval),
					scheduler.WithOnSessionExpired(notify),
				)
				unsubscribe := s.store.Subscribe(func(st store.State) {
					if !st.IsAuthenticated && !st.IsLoading {
						notify()
					} else if st.IsAuthenticated && !st.IsLoading {
						// keep the cookie file current after every refresh
						if err := s.api.SaveCookies(flags.cookieFile); err != nil {
							warn("Failed to save cookies: %s", err)
						}
					}
				})
				defer unsubscribe()

				sched.Start(ctx)
				defer sched.Stop()

				select {
				case <-ctx.Done():
					success("Stopped watching")
					return nil
				case <-expired:
					warn("Session expired, log in again: %s", s.expiredLoginURL())
					return errSessionExpired
				}
			})
		},
	}

	cmd.Flags().DurationVar(&checkInterval, "check-interval", scheduler.DefaultCheckInterval, "Period of the background session check")
	return cmd
}

func keygenCmd() *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a new RSA key for SESSION_SIGNING_KEY_PEM",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPEM, err := token.GenerateSessionSigningKeyPEM(bits)
			if err != nil {
				return err
			}
			fmt.Print(keyPEM)
			return nil
		},
	}

	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	return cmd
}

func printState(st store.State) {
	if st.User == nil {
		warn("No active session")
		return
	}
	success("Logged in as %s (%s)", st.User.Email, st.User.ID)
	if st.User.Name != "" {
		fmt.Printf("  name:     %s\n", st.User.Name)
	}
	if len(st.User.Roles) > 0 {
		fmt.Printf("  roles:    %v\n", st.User.Roles)
	}
	if st.ExpiresAt > 0 {
		expires := time.Unix(st.ExpiresAt, 0)
		fmt.Printf("  expires:  %s (in %s)\n", expires.Format(time.RFC3339), time.Until(expires).Round(time.Second))
	}
	if st.IsExpiringSoon {
		fmt.Println("  expiring soon")
	}
}
