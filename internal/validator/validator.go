package validator

import (
	"reflect"
	"strings"

	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct tag validation with definition checks
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags and converts failures to ValidationErrors
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if converted := ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

// Validate is kept as the single entry point used by services and handlers
func (v *Validator) Validate(s interface{}) error {
	return v.ValidateStruct(s)
}

// Question returns the question definition validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// ValidateAssessment runs struct tags and per-question definition checks
func (v *Validator) ValidateAssessment(assessment *models.Assessment) error {
	if err := v.ValidateStruct(assessment); err != nil {
		return err
	}
	return v.questionValidator.ValidateBatch(assessment.Questions)
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("user_role", validateUserRole)

	// Error fields use their json names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.QuestionSingle,
		models.QuestionMultiple,
		models.QuestionNumerical,
		models.QuestionMatch,
		models.QuestionSubjective,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateUserRole(fl validator.FieldLevel) bool {
	validRoles := []models.UserRole{
		models.RoleStudent,
		models.RoleTeacher,
		models.RoleAdmin,
	}

	value := fl.Field().String()
	for _, validRole := range validRoles {
		if string(validRole) == value {
			return true
		}
	}
	return false
}
