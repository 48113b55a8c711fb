package enums

import "fmt"

// AuthProvider identifies how an account signs in.
type AuthProvider string

const (
	AuthProviderEmail    AuthProvider = "email"
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderFacebook AuthProvider = "facebook"
)

var validAuthProviders = []AuthProvider{
	AuthProviderEmail,
	AuthProviderGoogle,
	AuthProviderFacebook,
}

func (p AuthProvider) String() string {
	return string(p)
}

func (p AuthProvider) IsValid() bool {
	for _, candidate := range validAuthProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresEmail reports whether accounts using this provider must carry an email.
func (p AuthProvider) RequiresEmail() bool {
	return p == AuthProviderEmail
}

func ParseAuthProvider(value string) (AuthProvider, error) {
	for _, candidate := range validAuthProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auth provider %q", value)
}
