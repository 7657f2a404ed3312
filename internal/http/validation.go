package http

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

// RegisterValidators installs custom binding validators on gin's engine.
// Safe to call more than once; registration happens a single time.
func RegisterValidators() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		// Error messages should name fields as they appear on the wire
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// notfuture rejects publication years after the current year
		_ = v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
			year := fl.Field().Int()
			return year <= int64(time.Now().Year())
		})
	})
}
