package registry

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Credentials for a (Docker) registry.
type Credentials struct {
	Username, Password string
	// Registry is the host the credentials are for, if known
	Registry string
}

func (c Credentials) String() string {
	if (Credentials{}) == c {
		return "<zero creds>"
	}
	return fmt.Sprintf("<registry creds for %s@%s>", c.Username, c.Registry)
}

func parseAuth(auth string) (Credentials, error) {
	decodedAuth, err := base64.StdEncoding.DecodeString(auth)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "decoding authorization token")
	}
	authParts := strings.SplitN(string(decodedAuth), ":", 2)
	if len(authParts) != 2 {
		return Credentials{},
			fmt.Errorf("decoded credential has wrong number of fields (expected 2, got %d)", len(authParts))
	}
	return Credentials{
		Username: authParts[0],
		Password: authParts[1],
	}, nil
}
