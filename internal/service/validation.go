package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

// registerAcademicValidators adds the academic_year ("2024/2025") and conduct tags.
func registerAcademicValidators(v *validator.Validate) {
	_ = v.RegisterValidation("academic_year", func(fl validator.FieldLevel) bool {
		return models.ValidAcademicYear(fl.Field().String())
	})
	// oneof cannot express "Very Good", so conduct gets its own tag.
	_ = v.RegisterValidation("conduct", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, rating := range models.ConductRatings {
			if value == rating {
				return true
			}
		}
		return false
	})
}

// invalidPayload wraps a validator failure as ErrValidation with per-field details.
func invalidPayload(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message).
		WithDetails(fieldErrors(err)...)
}

func fieldErrors(err error) []appErrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, appErrors.FieldError{Field: strings.ToLower(fe.Field()), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// describeValidation flattens validator errors into one line for import row reports.
func describeValidation(err error) string {
	details := fieldErrors(err)
	if details == nil {
		return err.Error()
	}
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, fmt.Sprintf("%s is %s", d.Field, d.Rule))
	}
	return strings.Join(parts, ", ")
}
