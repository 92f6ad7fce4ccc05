package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/feedline/internal/apperr"
)

// reservedUsernames 不能注册的用户名
var reservedUsernames = map[string]struct{}{
	"anonymous": {}, "public": {}, "about": {}, "help": {}, "everyone": {},
	"admin": {}, "api": {}, "settings": {}, "search": {}, "groups": {},
	"filter": {}, "attachments": {}, "files": {}, "profilepics": {}, "v1": {},
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			_, reserved := reservedUsernames[strings.ToLower(fl.Field().String())]
			return !reserved
		})
	})
	return validate
}

// validateStruct 把 validator 的错误转成 ValidationError，只报告第一个字段
func validateStruct(s interface{}) error {
	err := v().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperr.Validation(err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation(fmt.Sprintf("%s is required", fieldName(fe)))
	case "username", "alphanum":
		return apperr.Validation("Invalid username")
	case "min":
		return apperr.Validation(fmt.Sprintf("%s must be at least %s characters", fieldName(fe), fe.Param()))
	case "max":
		return apperr.Validation(fmt.Sprintf("%s must be at most %s characters", fieldName(fe), fe.Param()))
	case "email":
		return apperr.Validation("Invalid email")
	}
	return apperr.Validation(fmt.Sprintf("Invalid %s", fieldName(fe)))
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Username":
		return "Username"
	case "ScreenName":
		return "Screen name"
	case "Password":
		return "Password"
	}
	return strings.ToLower(fe.Field())
}
