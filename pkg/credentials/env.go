package credentials

import (
	"fmt"
	"os"
	"strings"
)

// EnvResolver reads credentials from environment variables named
// <PREFIX>_<REF>_<ATTRIBUTE>, e.g. HDRSCAN_STAGING_TOKEN.
type EnvResolver struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvResolver creates a resolver over the process environment
func NewEnvResolver(prefix string) *EnvResolver {
	return &EnvResolver{prefix: prefix, lookup: os.LookupEnv}
}

// Name returns the resolver's name
func (r *EnvResolver) Name() string {
	return "env"
}

// Resolve implements the CredentialResolver interface
func (r *EnvResolver) Resolve(credentialRef string) (map[string]string, error) {
	ref := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(credentialRef))

	creds := make(map[string]string)
	for _, key := range []string{KeyUsername, KeyPassword, KeyToken, KeyCookie} {
		name := fmt.Sprintf("%s_%s_%s", r.prefix, ref, strings.ToUpper(key))
		if value, ok := r.lookup(name); ok && value != "" {
			creds[key] = value
		}
	}

	if len(creds) == 0 {
		return nil, fmt.Errorf("no %s_%s_* variables set", r.prefix, ref)
	}
	return creds, nil
}
