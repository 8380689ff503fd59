package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// clientSecret is one block of a Google credentials.json.
type clientSecret struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// LoadConfig reads the first existing file of paths and builds the OAuth
// client configuration. The "installed" block is preferred over "web".
func LoadConfig(paths []string) (*oauth2.Config, string, error) {
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 -- credential search path from config
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, p, fmt.Errorf("%w: read %s: %v", ErrConfigInvalid, p, err)
		}
		cfg, err := parseConfig(data)
		if err != nil {
			return nil, p, fmt.Errorf("%s: %w", p, err)
		}
		return cfg, p, nil
	}
	return nil, "", fmt.Errorf("%w: searched %v", ErrConfigMissing, paths)
}

func parseConfig(data []byte) (*oauth2.Config, error) {
	var file struct {
		Installed *clientSecret `json:"installed"`
		Web       *clientSecret `json:"web"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	cs := file.Installed
	if cs == nil {
		cs = file.Web
	}
	if cs == nil {
		return nil, fmt.Errorf("%w: neither \"installed\" nor \"web\" client present", ErrConfigInvalid)
	}
	if cs.ClientID == "" || cs.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", ErrConfigInvalid)
	}

	endpoint := google.Endpoint
	if cs.AuthURI != "" {
		endpoint.AuthURL = cs.AuthURI
	}
	if cs.TokenURI != "" {
		endpoint.TokenURL = cs.TokenURI
	}
	// One style only: auto-detect would retry a failed refresh.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &oauth2.Config{
		ClientID:     cs.ClientID,
		ClientSecret: cs.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  RedirectURL,
		Scopes:       []string{Scope},
	}, nil
}
