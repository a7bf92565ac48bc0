package ddl

import (
	"regexp"
	"strings"

	"github.com/nucleus/doris-core/internal/core"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,255}$`)

// ValidateIdentifier rejects names that could alter the statement they are
// embedded in. kind is used in the error message.
func ValidateIdentifier(kind, name string) error {
	if !identRe.MatchString(name) {
		return core.Configurationf("invalid %s name %q", kind, name)
	}
	return nil
}

// Quote wraps an identifier in backticks.
func Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Qualified renders `database`.`table`.
func Qualified(database, table string) string {
	if database == "" {
		return Quote(table)
	}
	return Quote(database) + "." + Quote(table)
}
