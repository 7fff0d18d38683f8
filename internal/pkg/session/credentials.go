package session

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
)

// AuthType is the numeric account type the login endpoint expects
type AuthType int

const (
	AuthTypePhone AuthType = 0
	AuthTypeEmail AuthType = 1
)

func (a AuthType) String() string {
	switch a {
	case AuthTypePhone:
		return "phone"
	case AuthTypeEmail:
		return "email"
	}
	return fmt.Sprintf("AuthType(%d)", int(a))
}

// ParseAuthType accepts the names used in configuration.  "bluestar" is the
// historical default and means an email account.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "email", "bluestar", "1":
		return AuthTypeEmail, nil
	case "phone", "0":
		return AuthTypePhone, nil
	}

	return AuthTypeEmail, fmt.Errorf("unknown auth type `%s`, expected email or phone", s)
}

// Credentials identify the account.  They are immutable once built and
// never printed in the clear.
type Credentials struct {
	authID   string
	password string
	authType AuthType
}

func NewCredentials(authID string, password string, authType AuthType) Credentials {
	return Credentials{
		authID:   authID,
		password: password,
		authType: authType,
	}
}

func (c Credentials) AuthType() AuthType {
	return c.authType
}

func (c Credentials) Valid() bool {
	return c.authID != "" && c.password != ""
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate the account identifiers when stringified
//
func (c Credentials) String() string {
	return fmt.Sprintf("authID [%s], authType [%s], password [%s]",
		hashOf(c.authID), c.authType, hashOf(c.password))
}

// GoString keeps %#v from leaking the password
func (c Credentials) GoString() string {
	return "session.Credentials{" + c.String() + "}"
}

type loginRequest struct {
	AuthID   string `json:"auth_id"`
	AuthType int    `json:"auth_type"`
	Password string `json:"password"`
}

func (c Credentials) loginRequest() loginRequest {
	return loginRequest{
		AuthID:   c.authID,
		AuthType: int(c.authType),
		Password: c.password,
	}
}
