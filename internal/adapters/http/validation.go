package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/samirrijal/prelevements/internal/core/selection"
)

var validate = validator.New()

// filtersRequest is the wire form of selection.Filters, for query strings,
// JSON bodies and WebSocket messages alike.
type filtersRequest struct {
	Name       string   `json:"name" validate:"max=200"`
	TypeMilieu string   `json:"typeMilieu" validate:"max=100"`
	Usages     []string `json:"usages" validate:"max=20,dive,max=100"`
}

func (r filtersRequest) filters() selection.Filters {
	return selection.Filters{Name: r.Name, TypeMilieu: r.TypeMilieu, Usages: r.Usages}
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(msgs, "; ")
}
