package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/ynishi/dot-agent/pkg/errors"
)

var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "must not be blank")
	}
	if strings.ContainsAny(s, `/\`) {
		return validation.NewError("validation_separator", "must be a single name, not a path")
	}
	return nil
})

// Validate checks the configuration for values the engine cannot act on
func (c *Config) Validate() error {
	err := validation.Errors{
		"profile.exclude":              validation.Validate(c.Profile.Exclude, validation.Each(notBlank)),
		"profile.include":              validation.Validate(c.Profile.Include, validation.Each(notBlank)),
		"profile.ignore_files":         validation.Validate(c.Profile.IgnoreFiles, validation.Each(notBlank)),
		"install.protected":            validation.Validate(c.Install.Protected, validation.Each(validation.Required)),
		"snapshot.keep":                validation.Validate(c.Snapshot.Keep, validation.Min(0)),
		"snapshot.target_exclude":      validation.Validate(c.Snapshot.TargetExclude, validation.Each(notBlank)),
		"snapshot.target_ignore_files": validation.Validate(c.Snapshot.TargetIgnoreFiles, validation.Each(notBlank)),
	}.Filter()
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigValid, "invalid configuration")
	}
	return nil
}
