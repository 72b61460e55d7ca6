package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv treats a variable set to blanks the same as an unset one, matching
// how the env struct tags resolve defaults.
func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// envOr parses key with parse, falling back when the variable is blank or
// does not parse.
func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := parse(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnv(key, defaultVal string) string {
	return envOr(key, defaultVal, func(s string) (string, error) { return s, nil })
}

func getEnvAsInt(key string, defaultVal int) int {
	return envOr(key, defaultVal, strconv.Atoi)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return envOr(key, defaultVal, strconv.ParseBool)
}

// getEnvAsDuration accepts Go durations ("1m30s") and bare integers, which are
// read as seconds.
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return envOr(key, defaultVal, func(s string) (time.Duration, error) {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return time.ParseDuration(s)
	})
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	value, ok := lookupEnv(key)
	if !ok {
		return defaults
	}
	var filtered []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return defaults
	}
	return filtered
}
