package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators adds the custom tags to gin's binding engine:
//
//	cpf - eleven digits, optionally punctuated, with valid check digits
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = errors.New("binding engine is not go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(jsonName)
		validatorsErr = v.RegisterValidation("cpf", validateCPF)
	})
	return validatorsErr
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validateCPF(fl validator.FieldLevel) bool {
	_, err := shared.NewCPF(fl.Field().String())
	return err == nil
}

// describeBindError renders validator failures as "rows[1].cpf: cpf" pairs.
func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", dropRoot(fe.Namespace()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// dropRoot strips the leading struct type name. Generic type names carry
// dotted package paths inside brackets, so only a top level dot counts.
func dropRoot(ns string) string {
	depth := 0
	for i, r := range ns {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 {
				return ns[i+1:]
			}
		}
	}
	return ns
}
