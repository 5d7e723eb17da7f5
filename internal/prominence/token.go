package prominence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNoAccessToken = errors.New("unable to obtain access token")

// TokenProvider supplies the bearer token for each request. Providers are
// consulted per request so that an externally refreshed token is picked up
// without restarting.
type TokenProvider interface {
	Token() (string, error)
}

type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoAccessToken
	}
	return string(t), nil
}

// FileToken reads the token from a PROMINENCE token file, JSON with an
// "access_token" key. The default path is ~/.prominence/token.
type FileToken struct {
	Path string
}

func (t FileToken) Token() (string, error) {
	path := t.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".prominence", "token")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAccessToken, err)
	}

	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("%w: token file %s is not valid JSON: %v", ErrNoAccessToken, path, err)
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("%w: token file %s has no access_token", ErrNoAccessToken, path)
	}
	return data.AccessToken, nil
}

// DefaultTokenProvider prefers the PROMINENCE_TOKEN environment variable and
// falls back to the token file.
func DefaultTokenProvider() TokenProvider {
	if token := os.Getenv("PROMINENCE_TOKEN"); token != "" {
		return StaticToken(token)
	}
	return FileToken{}
}
