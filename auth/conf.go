package auth

import "time"

// Conf configures request authentication. With neither Token nor JWTSecret
// set, every request is accepted.
type Conf struct {
	// Token is a static bearer token granting the dispatcher role.
	Token string `json:"token" yaml:"token"`
	// JWTSecret verifies HS256 tokens issued by IssueToken.
	JWTSecret string        `json:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string        `json:"issuer" yaml:"issuer"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

// SetDefaults fills the issuer and token lifetime.
func (c *Conf) SetDefaults() {
	if c.Issuer == "" {
		c.Issuer = "dutysched"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
}

// Enabled reports whether requests must authenticate.
func (c Conf) Enabled() bool { return c.Token != "" || c.JWTSecret != "" }
