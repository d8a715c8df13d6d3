package services

import (
	"errors"
	"fmt"
	"strings"

	apperrors "iamcore/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// validate 与 gin 共用 binding 标签
var validate = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

// validateInput 校验入参，失败返回 Invalid
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Invalid("参数错误: %v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return apperrors.Invalid("参数错误: %s", strings.Join(fields, ", "))
}
