// Package main provides the device-login authentication tool.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/soramane/tidecast/internal/auth"
)

var (
	app          = kingpin.New("tidecast-auth", "Device-login tool for tidecast")
	clientID     = app.Flag("client-id", "API client ID").Envar("TIDECAST_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "API client secret").Envar("TIDECAST_CLIENT_SECRET").Required().String()
	authURL      = app.Flag("auth-url", "OAuth base URL").Default("https://auth.tidal.com/v1/oauth2").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	flow := auth.NewFlow(auth.Config{
		AuthURL:      *authURL,
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
	}, &auth.MemoryTokenStore{})

	ctx := context.Background()
	dc, err := flow.BeginDeviceLogin(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Please visit the following URL to authorize tidecast:")
	fmt.Println("")
	if dc.VerificationURIComplete != "" {
		fmt.Println("  https://" + dc.VerificationURIComplete)
	} else {
		fmt.Printf("  %s  (code: %s)\n", dc.VerificationURI, dc.UserCode)
	}
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	ticker := time.NewTicker(dc.PollInterval())
	defer ticker.Stop()

	for range ticker.C {
		res, err := flow.PollDeviceLogin(ctx, dc)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		switch res.State {
		case auth.PollPending:
			continue
		case auth.PollFailed:
			fmt.Printf("Authorization failed: %s\n", res.Reason)
			os.Exit(1)
		case auth.PollSuccess:
			printToken(res.Token)
			return
		}
	}
}

func printToken(tok *auth.Token) {
	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Printf("User ID:       %s\n", tok.UserID)
	fmt.Printf("Country:       %s\n", tok.CountryCode)
	fmt.Printf("Expires:       %s\n", tok.ExpiresAt.Format(time.RFC3339))
	fmt.Println("")
	fmt.Println("Refresh Token:")
	fmt.Println(tok.RefreshToken)
}
