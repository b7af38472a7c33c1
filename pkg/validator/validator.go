package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates request and model structs using `validate` tags.
type Validator interface {
	Validate(obj interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

var distributionModes = map[string]bool{
	"round_robin": true,
	"random":      true,
	"weighted":    true,
	"smart":       true,
}

func New() (Validator, error) {
	v := validator.New()

	if err := v.RegisterValidation("distribution_mode", func(fl validator.FieldLevel) bool {
		return distributionModes[fl.Field().String()]
	}); err != nil {
		return nil, err
	}

	return &structValidator{v: v}, nil
}

func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
