package ports

import "github.com/lumenpay/lumenvault/core"

// Tokenizer converts between identities and signed session tokens
type Tokenizer interface {
	IdentityToToken(identity core.Identity) (string, error)
	TokenToIdentity(token string) (core.Identity, error)
}
