package httputil

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates request payload structs via `validate` tags.
var Validator = validator.New()

// ValidationError writes a 400 with a readable list of failed fields.
func ValidationError(log *slog.Logger, w http.ResponseWriter, err error) {
	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	msg := "invalid request"
	if len(fields) > 0 {
		msg = "invalid request: " + strings.Join(fields, ", ")
	}
	Fail(log, w, msg, err, http.StatusBadRequest)
}
