package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator"

	"github.com/littlewalk/go-walk/models"
)

var inputValidator = validator.New()

// validateInput runs struct tag validation and reports the first failure as a models.ValidationError.
func validateInput(input interface{}) error {
	if err := inputValidator.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fieldErr := fieldErrs[0]
			return &models.ValidationError{
				Field:  fieldErr.Field(),
				Reason: fmt.Sprintf("failed %q validation", fieldErr.Tag()),
			}
		}
		return &models.ValidationError{Reason: err.Error()}
	}
	return nil
}

func requireActor(actorId string) error {
	if len(actorId) == 0 {
		return &models.ValidationError{Field: "actor", Reason: "missing actor id"}
	}
	return nil
}

func requireId(field, id string) error {
	if len(id) == 0 {
		return &models.ValidationError{Field: field, Reason: "missing id"}
	}
	return nil
}
