package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/arguslabs/argus/pkg/services"
)

var validate = validator.New()

// RegisterAgentRequest is the body of POST /api/agents/register, sent by
// the capture hook when a monitored agent starts up.
type RegisterAgentRequest struct {
	Name            string `json:"name" validate:"required"`
	SourceFile      string `json:"source_file"`
	TaskDescription string `json:"task_description"`
}

// Validate checks the request, translating validator failures into field
// errors the API can render.
func (r *RegisterAgentRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return services.NewValidationError(strings.ToLower(fe.Field()), describeTag(fe.Tag()))
	}
	return err
}

func describeTag(tag string) string {
	if tag == "required" {
		return "is required"
	}
	return "failed " + tag + " validation"
}
