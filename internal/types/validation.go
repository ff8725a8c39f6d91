package types

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"careerlaunch/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Submission thresholds, in characters
const (
	MinResumeTextLength      = 20
	MinJobDescriptionLength  = 20
	MinJobDescriptionLinkLen = 5
)

var (
	validatorOnce sync.Once
	inputValidate *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		inputValidate = validator.New(validator.WithRequiredStructEnabled())
		inputValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		inputValidate.RegisterStructValidation(validateUserInputSources, UserInput{})
	})
	return inputValidate
}

// validateUserInputSources checks the cross-field rules: one resume source and one job target
func validateUserInputSources(sl validator.StructLevel) {
	in := sl.Current().Interface().(UserInput)

	textPresent := utf8.RuneCountInString(in.ResumeText) > MinResumeTextLength
	switch {
	case in.HasDocument() && strings.TrimSpace(in.ResumeText) != "":
		sl.ReportError(in.ResumeText, "resumeText", "ResumeText", "excluded_with_document", "")
	case !in.HasDocument() && !textPresent:
		sl.ReportError(in.ResumeText, "resumeText", "ResumeText", "resume_source", "")
	}

	switch in.JobDescriptionType {
	case JobDescriptionText:
		if utf8.RuneCountInString(in.JobDescription) <= MinJobDescriptionLength {
			sl.ReportError(in.JobDescription, "jobDescription", "JobDescription", "job_source", "")
		}
	case JobDescriptionLink:
		if utf8.RuneCountInString(in.JobDescriptionLink) <= MinJobDescriptionLinkLen {
			sl.ReportError(in.JobDescriptionLink, "jobDescriptionLink", "JobDescriptionLink", "job_source", "")
		}
	}
}

// Validate checks the submission gate on the normalized input. It returns an
// InputInvalid AppError whose "fields" context lists every failing field.
func (in UserInput) Validate() error {
	err := getValidator().Struct(in.Normalize())
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !stderrors.As(err, &validationErrs) {
		return errors.NewValidationError(errors.ErrCodeInputInvalid, "Invalid input", err)
	}

	fields := make([]string, 0, len(validationErrs))
	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fe.Field())
		messages = append(messages, describeFieldError(fe))
	}

	return errors.NewValidationError(errors.ErrCodeInputInvalid, strings.Join(messages, "; "), nil).
		WithContext("fields", fields)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "resume_source":
		return fmt.Sprintf("resume text must be longer than %d characters or a document must be attached", MinResumeTextLength)
	case "excluded_with_document":
		return "resume text must be empty when a document is attached"
	case "job_source":
		if fe.Field() == "jobDescriptionLink" {
			return fmt.Sprintf("job description link must be longer than %d characters", MinJobDescriptionLinkLen)
		}
		return fmt.Sprintf("job description must be longer than %d characters", MinJobDescriptionLength)
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
