package http

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stellar/go/strkey"
)

var registerOnce sync.Once

// registerValidators adds the stellar_pubkey binding tag to gin's validator
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("stellar_pubkey", func(fl validator.FieldLevel) bool {
			return strkey.IsValidEd25519PublicKey(fl.Field().String())
		})
	})
}
