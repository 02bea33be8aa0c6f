package sforce

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadJWTCredentials reads certificate-assertion credentials from the
// environment. SF_PRIVATE_KEY holds the PEM text directly;
// SF_PRIVATE_KEY_FILE points at a PEM file instead.
func LoadJWTCredentials() (*JWTCredentials, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	creds := &JWTCredentials{
		Username:    os.Getenv("SF_USERNAME"),
		ConsumerKey: os.Getenv("SF_CONSUMER_KEY"),
		PrivateKey:  os.Getenv("SF_PRIVATE_KEY"),
		ServerURL:   os.Getenv("SF_SERVER_URL"),
	}

	if creds.PrivateKey == "" {
		if keyFile := os.Getenv("SF_PRIVATE_KEY_FILE"); keyFile != "" {
			pem, err := os.ReadFile(keyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read SF_PRIVATE_KEY_FILE: %w", err)
			}
			creds.PrivateKey = string(pem)
		}
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return creds, nil
}

// LoadPasswordCredentials reads password-grant credentials from the
// environment.
func LoadPasswordCredentials() (*PasswordCredentials, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	creds := &PasswordCredentials{
		Username:       os.Getenv("SF_USERNAME"),
		Password:       os.Getenv("SF_PASSWORD"),
		ConsumerKey:    os.Getenv("SF_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("SF_CONSUMER_SECRET"),
		ServerURL:      os.Getenv("SF_SERVER_URL"),
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return creds, nil
}
