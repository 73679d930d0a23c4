package dto

import (
	"payment-orchestrator/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("provider", validProvider)
		_ = v.RegisterValidation("paymethod", validMethod)
	}
}

func validProvider(fl validator.FieldLevel) bool {
	return domain.Provider(fl.Field().String()).Valid()
}

func validMethod(fl validator.FieldLevel) bool {
	switch domain.PaymentMethodType(fl.Field().String()) {
	case domain.MethodCard, domain.MethodPix, domain.MethodBoleto, domain.MethodOpenFinance:
		return true
	}
	return false
}
