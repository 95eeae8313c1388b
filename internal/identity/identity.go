// Package identity resolves a local Strawberry ID (the optional
// username/token pair a client can present during the protocol
// Hello) from a credentials file, and verifies one against the
// identity service. See SPEC_FULL.md §4.7.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BaseURL is the identity service this client and server trust.
const BaseURL = "https://id.strawberryfoundations.org/v2/"

// Credentials is the on-disk `~/.config/tunneled/credentials.yml` document.
type Credentials struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// VerifiedIdentity is what the identity service confirms about a
// Credentials pair.
type VerifiedIdentity struct {
	Username       string
	FullName       string
	Email          string
	ProfilePicture string
}

// CredentialsPath returns `~/.config/tunneled/credentials.yml`.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &IdentityError{Msg: "locating home directory", Err: err}
	}
	return filepath.Join(home, ".config", "tunneled", "credentials.yml"), nil
}

// Load reads the credentials file. A missing file is reported as an
// *IdentityError so callers can fall back to anonymous use.
func Load() (*Credentials, error) {
	path, err := CredentialsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IdentityError{Msg: "credentials.yml not found, run 'tunneled auth' to authenticate", Err: err}
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, &IdentityError{Msg: "decoding credentials.yml", Err: err}
	}
	return &creds, nil
}

// Save writes creds to the credentials file, creating the parent
// directory if needed. It refuses to overwrite an existing file.
func Save(creds *Credentials) (string, error) {
	path, err := CredentialsPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, &IdentityError{Msg: fmt.Sprintf("credentials.yml already exists at %s", path)}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", &IdentityError{Msg: "creating config directory", Err: err}
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return "", &IdentityError{Msg: "encoding credentials.yml", Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", &IdentityError{Msg: "writing credentials.yml", Err: err}
	}
	return path, nil
}

// Client talks to the identity service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against BaseURL.
func New() *Client {
	return &Client{baseURL: BaseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

// Resolve loads the local credentials file and verifies it against
// the identity service in one step. It returns (nil, nil) — not an
// error — when no credentials file exists, since identity is always
// optional on a Hello.
func (c *Client) Resolve() (*VerifiedIdentity, error) {
	creds, err := Load()
	if err != nil {
		var idErr *IdentityError
		if errors.As(err, &idErr) {
			return nil, nil
		}
		return nil, err
	}
	return c.Verify(creds.Username, creds.Token)
}

type authEnvelope struct {
	Data struct {
		Status string `json:"status"`
		User   struct {
			FullName          string `json:"full_name"`
			Email             string `json:"email"`
			ProfilePictureURL string `json:"profile_picture_url"`
			Username          string `json:"username"`
		} `json:"user"`
	} `json:"data"`
}

// Verify checks a username/token pair against the identity service.
func (c *Client) Verify(username, token string) (*VerifiedIdentity, error) {
	url := fmt.Sprintf("%sapi/auth?username=%s&token=%s", c.baseURL, username, token)
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, &IdentityError{Msg: "contacting identity service", Err: err}
	}
	defer resp.Body.Close()

	var env authEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &IdentityError{Msg: "decoding identity response", Err: err}
	}
	if env.Data.Status != "Ok" {
		return nil, &IdentityError{Msg: "identity rejected the supplied credentials"}
	}
	return &VerifiedIdentity{
		Username:       env.Data.User.Username,
		FullName:       env.Data.User.FullName,
		Email:          env.Data.User.Email,
		ProfilePicture: env.Data.User.ProfilePictureURL,
	}, nil
}
