package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"github.com/justsurfingit/elevate-tracker/internal/config"
)

// GmailClient returns an HTTP client authorized for read-only Gmail access.
//
// The OAuth client comes from gmail.credentials_file. The user token is cached in
// gmail.token_file; when it is missing the authorization URL is printed to out and
// the code is read from in.
func GmailClient(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, log logrus.FieldLogger) (*http.Client, error) {
	b, err := os.ReadFile(cfg.Gmail.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}

	tok, err := tokenFromFile(cfg.Gmail.TokenFile)
	if err != nil {
		if in == nil {
			return nil, fmt.Errorf("no cached gmail token at %s", cfg.Gmail.TokenFile)
		}
		tok, err = tokenFromWeb(ctx, oauthCfg, in, out)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.Gmail.TokenFile).Info("Saving gmail token")
		if err := saveToken(cfg.Gmail.TokenFile, tok); err != nil {
			return nil, err
		}
	}
	return oauthCfg.Client(ctx, tok), nil
}

func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "\n---------------------------------------------------------\n")
	fmt.Fprintf(out, "OPEN THIS LINK TO AUTHORIZE GMAIL ACCESS:\n%v\n", authURL)
	fmt.Fprintf(out, "---------------------------------------------------------\n")
	fmt.Fprintf(out, "Paste the code here: ")

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := cfg.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
