// Package firebaseapp bootstraps the Firebase Admin app from a service account.
package firebaseapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// ErrNoCredentials is returned when no service account JSON was configured.
var ErrNoCredentials = errors.New("firebase service account key is not set")

// ServiceAccount is the subset of a service account key we inspect.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ParseServiceAccount decodes and sanity-checks a JSON service account key.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	if len(raw) == 0 {
		return nil, ErrNoCredentials
	}
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("service account key is missing client_email or private_key")
	}
	return &sa, nil
}

// NewApp initializes a Firebase app. When credentialsJSON is empty the app
// falls back to Application Default Credentials if allowADC is true.
// projectID overrides the project named in the key.
func NewApp(ctx context.Context, credentialsJSON []byte, projectID string, allowADC bool) (*firebase.App, error) {
	var opts []option.ClientOption

	sa, err := ParseServiceAccount(credentialsJSON)
	switch {
	case err == nil:
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
		if projectID == "" {
			projectID = sa.ProjectID
		}
	case errors.Is(err, ErrNoCredentials) && allowADC:
		// Application Default Credentials (emulators, workload identity).
	default:
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}
