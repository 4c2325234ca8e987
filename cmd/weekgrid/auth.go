package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"weekgrid/internal/google"
	appLog "weekgrid/internal/log"
)

func googleAuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "google-auth",
		Usage: "Authorize read access to a Google account and store its token.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Value: "default", Usage: "name the token is stored under (calendars[].account)"},
			&cli.StringFlag{Name: "redirect", Value: google.DefaultRedirectURL, Usage: "loopback redirect URL registered for the OAuth client"},
			&cli.BoolFlag{Name: "list", Usage: "list accounts that already have a token"},
		},
		Action: func(c *cli.Context) error {
			env, err := openEnv(c)
			if err != nil {
				return err
			}
			defer env.Close()
			tokenDir := env.cfg.Google.TokenDir

			if c.Bool("list") {
				accounts, err := google.Accounts(tokenDir)
				if err != nil {
					return err
				}
				for _, a := range accounts {
					fmt.Println(a)
				}
				return nil
			}

			oc, err := google.OAuthConfig(env.cfg.Google.ClientID, env.cfg.Google.ClientSecret, c.String("redirect"))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()
			ctx, timeout := context.WithTimeout(ctx, 5*time.Minute)
			defer timeout()

			token, err := loopbackAuth(ctx, oc)
			if err != nil {
				return err
			}
			path := google.TokenPath(tokenDir, c.String("account"))
			if err := google.SaveToken(path, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			appLog.Info("google token saved", "account", c.String("account"), "file", path)
			return nil
		},
	}
}

// loopbackAuth prints the consent URL, waits for Google to redirect back to
// oc.RedirectURL and exchanges the code.
func loopbackAuth(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	redirect, err := url.Parse(oc.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("redirect url: %w", err)
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", redirect.Host, err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusForbidden)
			errCh <- fmt.Errorf("authorization denied: %s", q.Get("error"))
			return
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "weekgrid is authorized. You can close this tab.")
		codeCh <- q.Get("code")
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer srv.Close()

	fmt.Printf("Open the following link in your browser:\n\n%s\n\n", oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codeCh:
		tok, err := oc.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
