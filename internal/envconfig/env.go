// Package envconfig supplies flag defaults from the environment and an
// optional .env file.
package envconfig

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Variables read by the commands.
const (
	DataDir    = "TILEDSWARM_DATA"
	ConfigPath = "TILEDSWARM_CONFIG"
	Parallel   = "TILEDSWARM_PARALLEL"
)

// Load reads path (".env" when empty) without overriding variables that are
// already set. A missing file is not an error.
func Load(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func GetDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// GetInt falls back to def when key is unset or not an integer.
func GetInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
