package config

import "os"

// lookupEnv is the single seam the getEnv* helpers use to read the
// process environment, kept separate so tests can be added without
// touching every call site.
func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
