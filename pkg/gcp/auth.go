package gcp

import (
	"context"
	"errors"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/cloudsearch/v1"
	"google.golang.org/api/option"
)

const (
	IdentityScope = "https://www.googleapis.com/auth/cloud-identity"
	SearchScope   = cloudsearch.CloudSearchScope
)

var errNoServiceAccountFile = errors.New("no service account file given")

// Credentials loads a service account key file and binds it to scopes.
func Credentials(ctx context.Context, serviceAccountFile string, scopes ...string) (*google.Credentials, error) {
	if serviceAccountFile == "" {
		return nil, newError(KindAuth, "load credentials", errNoServiceAccountFile)
	}

	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, newError(KindAuth, "read service account file", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, newError(KindAuth, "parse service account file", err)
	}
	return creds, nil
}

// ServiceAccountOption is the client option authenticating API clients with
// the given key file.
func ServiceAccountOption(ctx context.Context, serviceAccountFile string, scopes ...string) (option.ClientOption, error) {
	creds, err := Credentials(ctx, serviceAccountFile, scopes...)
	if err != nil {
		return nil, err
	}
	return option.WithCredentials(creds), nil
}
