package registry

import (
	"os"
	"path/filepath"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// Npmrc holds per-scope registry URLs and per-host auth tokens parsed from
// .npmrc files. Lookups are backed by maps built once per run, so the
// memoization is owned by the run rather than by ambient globals.
type Npmrc struct {
	registry string            // registry= override
	scopes   map[string]string // "@scope" -> registry URL
	tokens   map[string]string // "//host/path/" -> token
}

// LoadNpmrc merges the user-level and project-level .npmrc files, with the
// project file taking precedence. Missing files are not an error.
func LoadNpmrc(projectDir string) *Npmrc {
	rc := &Npmrc{
		scopes: make(map[string]string),
		tokens: make(map[string]string),
	}

	if home, err := os.UserHomeDir(); err == nil {
		rc.mergeFile(filepath.Join(home, ".npmrc"))
	}
	rc.mergeFile(filepath.Join(projectDir, ".npmrc"))

	return rc
}

func (rc *Npmrc) mergeFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	logger.Debugf("[registry] Loaded npmrc from %s", path)
	rc.merge(string(data))
}

func (rc *Npmrc) merge(content string) {
	if rc.scopes == nil {
		rc.scopes = make(map[string]string)
	}
	if rc.tokens == nil {
		rc.tokens = make(map[string]string)
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == "registry":
			rc.registry = strings.TrimSuffix(value, "/")
		case strings.HasPrefix(key, "@") && strings.HasSuffix(key, ":registry"):
			scope := strings.TrimSuffix(key, ":registry")
			rc.scopes[scope] = strings.TrimSuffix(value, "/")
		case strings.HasPrefix(key, "//") && strings.HasSuffix(key, ":_authToken"):
			host := strings.TrimSuffix(key, ":_authToken")
			rc.tokens[host] = expandEnv(value)
		}
	}
}

// RegistryFor returns the registry URL to use for a package: the scope
// mapping when one matches, then the registry= override, then fallback.
func (rc *Npmrc) RegistryFor(name, fallback string) string {
	if strings.HasPrefix(name, "@") {
		scope, _, _ := strings.Cut(name, "/")
		if url, ok := rc.scopes[scope]; ok {
			return url
		}
	}
	if rc.registry != "" {
		return rc.registry
	}
	return fallback
}

// TokenFor returns the auth token configured for a registry URL, matching on
// the scheme-less host prefix the npm cli uses.
func (rc *Npmrc) TokenFor(regURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(regURL, "https:"), "http:")
	trimmed = strings.TrimSuffix(trimmed, "/")

	for host, token := range rc.tokens {
		if strings.TrimSuffix(host, "/") == trimmed {
			return token
		}
	}
	return ""
}

// expandEnv resolves ${VAR} references in npmrc values.
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}
	return value
}
