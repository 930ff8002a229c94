package validator

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/x-xyz/nftvault/domain"
)

// IsValidAddress returns is an address valid or not
func IsValidAddress(address string) bool {
	checksum := common.HexToAddress(address).Hex()
	return strings.ToLower(checksum) == strings.ToLower(address)
}

// IsValidAmount accepts a non-negative decimal string
func IsValidAmount(amount string) bool {
	v, err := domain.ParseAmount(amount)
	return err == nil && v.Sign() >= 0
}

// New returns a validate with the "address" and "amount" tags registered.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return IsValidAddress(fl.Field().String())
	})
	v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return IsValidAmount(fl.Field().String())
	})
	return v
}

func NewCustomValidator(v *validator.Validate) echo.Validator {
	return &CustomValidator{v}
}

type CustomValidator struct {
	validator *validator.Validate
}

func (v *CustomValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return err
	}
	return nil
}
