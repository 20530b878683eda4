package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/adder/internal/server"
	"github.com/desertthunder/adder/internal/services"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// openBrowser is replaced in tests.
var openBrowser = shared.OpenBrowser

// Auth runs the authorization code flow and stores the issued tokens in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}
	configPath := cmd.String("config")

	oauthConfig, err := services.NewOAuthConfig(r.config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("%w: set client_id and client_secret in %s or .env", err, configPath)
	}

	token, err := r.doOAuth(ctx, oauthConfig)
	if err != nil {
		return err
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.configPath = configPath
	r.creds = nil

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now use: adder sync --playlist <url> --tracklist <file>\n")

	return nil
}

// doOAuth serves the callback locally, sends the user to the consent page and waits for the exchanged token.
func (r *Runner) doOAuth(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	callback := server.NewCallbackServer(addr, oauthConfig, state, r.logger)
	if err := callback.Start(); err != nil {
		return nil, err
	}
	r.logger.Infof("started OAuth callback server at %v", callback.Addr())

	authURL := services.AuthURL(oauthConfig, state)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", authTimeout)

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	token, err := callback.Wait(waitCtx)
	if err != nil {
		if waitCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, authTimeout)
		}
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return token, nil
}
