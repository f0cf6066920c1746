package profiles

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/ynishi/dot-agent/pkg/errors"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateName checks a profile name: 1-64 characters, starting with a
// letter, then letters, digits, '-' or '_'.
func ValidateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, 64),
		validation.Match(namePattern).Error("must start with a letter and contain only letters, digits, '-' or '_'"),
	)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "invalid profile name %q", name).
			WithDetail("name", name)
	}
	return nil
}
