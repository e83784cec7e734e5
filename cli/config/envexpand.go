package config

import (
	"os"
	"regexp"
	"strings"
)

// envRef matches ${NAME} and ${NAME:-fallback}. A bare $NAME is left alone
// so secrets and URLs containing '$' survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in input. An unset or empty
// variable takes its fallback, or the empty string without one.
func ExpandEnv(input string) string {
	var b strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(input, -1) {
		b.WriteString(input[last:m[0]])
		value := os.Getenv(input[m[2]:m[3]])
		if value == "" && m[4] >= 0 {
			value = input[m[4]:m[5]]
		}
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(input[last:])
	return b.String()
}
