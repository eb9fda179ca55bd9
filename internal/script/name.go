package script

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NameError reports a script file whose name does not follow the
// {version}_{description}{suffix} convention.
type NameError struct {
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid script name %q: %s", e.Name, e.Reason)
}

// ParseFilename splits a script file name into version, description and kind.
// Underscores in the description are read back as spaces.
func ParseFilename(name string) (version int64, description string, kind Kind, err error) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, "", Simple, &NameError{Name: name, Reason: "missing .sql suffix"}
	}

	kind = KindFromFilename(name)
	stem := strings.TrimSuffix(name, kind.Suffix())

	prefix, rest, found := strings.Cut(stem, "_")
	if !found {
		return 0, "", kind, &NameError{Name: name, Reason: "expected {version}_{description}"}
	}

	version, perr := strconv.ParseInt(prefix, 10, 64)
	if perr != nil || version <= 0 {
		return 0, "", kind, &NameError{Name: name, Reason: fmt.Sprintf("version %q is not a positive integer", prefix)}
	}

	description = strings.ReplaceAll(rest, "_", " ")
	if strings.TrimSpace(description) == "" {
		return 0, "", kind, &NameError{Name: name, Reason: "empty description"}
	}

	return version, description, kind, nil
}

// Filename builds the file name for a script. Spaces in the description
// become underscores; the description is NFC-normalized so visually identical
// names typed on different platforms map to the same file.
func Filename(version int64, description string, kind Kind) string {
	desc := norm.NFC.String(strings.TrimSpace(description))
	desc = strings.ReplaceAll(desc, " ", "_")
	return fmt.Sprintf("%d_%s%s", version, desc, kind.Suffix())
}
