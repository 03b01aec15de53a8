package repair

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/raphaelgruber/rafeeq/internal/models"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks every required-field invariant of an AnalysisRecord.
func Validate(rec models.AnalysisRecord) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate.Struct(rec)
}
