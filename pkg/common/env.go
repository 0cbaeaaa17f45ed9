package common

import (
	"os"

	"github.com/samber/lo"
)

// Getenv returns the environment variable key or fallback when it is unset
// or empty. It is used for flag defaults so values from a .env file apply.
func Getenv(key, fallback string) string {
	return lo.CoalesceOrEmpty(os.Getenv(key), fallback)
}
