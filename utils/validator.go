package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"salesdesk/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	enum := func(valid func(string) bool) validator.Func {
		return func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || valid(s)
		}
	}
	_ = v.RegisterValidation("lead_stage", enum(func(s string) bool { return models.LeadStage(s).Valid() }))
	_ = v.RegisterValidation("likelihood", enum(func(s string) bool { return models.Likelihood(s).Valid() }))
	_ = v.RegisterValidation("risk_level", enum(func(s string) bool { return models.RiskLevel(s).Valid() }))
	_ = v.RegisterValidation("task_status", enum(func(s string) bool { return models.TaskStatus(s).Valid() }))
	_ = v.RegisterValidation("priority", enum(func(s string) bool { return models.Priority(s).Valid() }))
	_ = v.RegisterValidation("invoice_status", enum(func(s string) bool { return models.InvoiceStatus(s).Valid() }))
	_ = v.RegisterValidation("rating", enum(func(s string) bool { return s == models.RatingUp || s == models.RatingDown }))
	return v
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	// Format validation errors
	var msgs []string
	for _, err := range verrs {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param)
		case "max":
			msgs = append(msgs, field+" must be at most "+param)
		case "gte":
			msgs = append(msgs, field+" must be greater than or equal to "+param)
		case "lte":
			msgs = append(msgs, field+" must be less than or equal to "+param)
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+param)
		case "lead_stage", "likelihood", "risk_level", "task_status", "priority", "invoice_status", "rating":
			msgs = append(msgs, field+" has an invalid value")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return errors.New(strings.Join(msgs, ", "))
}
