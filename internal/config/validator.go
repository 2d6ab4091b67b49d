package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/commons/internal/version"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	operationNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"yaml", "mapstructure"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})

		_ = v.RegisterValidation("version", func(fl validator.FieldLevel) bool {
			_, err := version.Parse(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("operation_name", func(fl validator.FieldLevel) bool {
			return operationNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidateDocument performs schema and cross-entry validation.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return commonserrors.NewValidationError("", "configuration is nil", nil)
	}

	if len(doc.Upgrades) == 0 && len(doc.Pipelines) == 0 {
		return commonserrors.NewValidationError("upgrades", "configuration declares no upgrades", nil)
	}

	if err := validatorInstance().Struct(doc); err != nil {
		return convertValidationError(err)
	}

	if err := validateEntries("upgrades", doc.Upgrades); err != nil {
		return err
	}
	for _, name := range doc.PipelineNames() {
		if err := validateEntries(fmt.Sprintf("pipelines.%s.upgrades", name), doc.Pipelines[name].Upgrades); err != nil {
			return err
		}
	}

	return nil
}

// validateEntries checks that every entry moves forward and that the list is
// declared in ascending currentVersion order.
func validateEntries(field string, entries []Entry) error {
	var previous version.Version
	for i, entry := range entries {
		current, err := version.Parse(entry.CurrentVersion)
		if err != nil {
			return commonserrors.NewValidationError(entryField(field, i, "currentVersion"), err.Error(), err)
		}
		next, err := version.Parse(entry.NextVersion)
		if err != nil {
			return commonserrors.NewValidationError(entryField(field, i, "nextVersion"), err.Error(), err)
		}
		if !current.Less(next) {
			return commonserrors.NewValidationError(
				entryField(field, i, "nextVersion"),
				fmt.Sprintf("next version %s must be greater than current version %s", next, current),
				nil,
			)
		}
		if i > 0 && current.Less(previous) {
			return commonserrors.NewValidationError(
				entryField(field, i, "currentVersion"),
				fmt.Sprintf("entries must be declared in ascending version order (%s follows %s)", current, previous),
				nil,
			)
		}
		previous = current
	}
	return nil
}

// ValidateStruct runs struct-tag validation on an arbitrary value, such as
// decoded operation parameters.
func ValidateStruct(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		return convertValidationError(err)
	}
	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := fieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return commonserrors.NewValidationError(field, msg, err)
	}

	return commonserrors.NewValidationError("", err.Error(), err)
}

// fieldName drops the root struct name from the validator namespace so
// errors reference document keys ("upgrades[0].nextVersion").
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func entryField(list string, index int, field string) string {
	return fmt.Sprintf("%s[%d].%s", list, index, field)
}
