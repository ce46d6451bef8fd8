package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/errors"
)

// Entry is one dog as written in the registry file.
type Entry struct {
	ID             string   `yaml:"id" validate:"required,dogid"`
	Name           string   `yaml:"name" validate:"max=128"`
	Profile        string   `yaml:"profile" validate:"omitempty,dogid"`
	Modules        []string `yaml:"modules" validate:"required,min=1,unique,dive,dogid"`
	Capacity       int      `yaml:"capacity" validate:"gte=0"`
	BaseAllocation int      `yaml:"base_allocation" validate:"gte=0"`
	Requested      []string `yaml:"requested" validate:"unique,dive,required"`
}

// File is the registry file layout.
type File struct {
	Dogs []Entry `yaml:"dogs" validate:"dive"`
}

var (
	validate  *validator.Validate
	idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
)

func init() {
	validate = validator.New()
	// ids end up in URLs, entity keys ("dog.module") and log fields.
	_ = validate.RegisterValidation("dogid", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
}

// Parse decodes and validates a registry document. Duplicate ids are an
// error.
func Parse(data []byte) ([]Entry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewRegistryError("parse registry", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, errors.NewRegistryError("invalid registry", describe(err))
	}

	seen := make(map[string]struct{}, len(f.Dogs))
	for _, e := range f.Dogs {
		if _, dup := seen[e.ID]; dup {
			return nil, errors.NewRegistryError("invalid registry",
				errors.NewValidationError("duplicate dog id").WithField("id").WithValue(e.ID))
		}
		seen[e.ID] = struct{}{}
	}
	return f.Dogs, nil
}

// describe flattens validator errors into one ErrInvalidInput error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.NewValidationError(strings.Join(msgs, "; "))
}

// Config converts e to the orchestrator's static dog configuration.
// capacity resolves the entity capacity when e does not set one.
func (e Entry) Config(capacity func(profile string) int) cycle.DogConfig {
	c := e.Capacity
	if c == 0 && capacity != nil {
		c = capacity(e.Profile)
	}
	return cycle.DogConfig{
		ID:                e.ID,
		Name:              e.Name,
		Profile:           e.Profile,
		Modules:           append([]string(nil), e.Modules...),
		Capacity:          c,
		BaseAllocation:    e.BaseAllocation,
		RequestedEntities: append([]string(nil), e.Requested...),
	}
}
