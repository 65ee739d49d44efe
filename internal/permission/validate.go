package permission

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateArgs checks the struct tags of an argument record and reports the
// first violation as an InvalidParameter error.
func validateArgs(args any) error {
	err := validate.Struct(args)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return invalidParameter(fe.Namespace(), "failed %s=%s", fe.Tag(), fe.Param())
		}
		return invalidParameter(fe.Namespace(), "failed %s", fe.Tag())
	}
	return invalidParameter("args", "%v", err)
}
