// internal/engine/validation.go
package engine

import (
	"poultry-review-engine/internal/common/validation"
	"poultry-review-engine/internal/models"
)

// validateProfile checks the farm profile shape: location fields are required,
// numeric fields must be sane, and contact addresses must parse when present.
// Whether the profile meets program criteria is a separate, scored concern.
func validateProfile(p models.FarmProfile) *validation.ValidationResult {
	result := validation.NewResult()

	if p.County == "" {
		result.Add("county", "required field missing", "REQUIRED_FIELD_MISSING")
	}
	if p.Constituency == "" {
		result.Add("constituency", "required field missing", "REQUIRED_FIELD_MISSING")
	}
	if p.ApplicantAge < 0 || p.ApplicantAge > 120 {
		result.Add("applicantAge", "must be between 0 and 120", "OUT_OF_RANGE")
	}
	if p.MonthsFarming < 0 {
		result.Add("monthsFarming", "must not be negative", "OUT_OF_RANGE")
	}
	if p.FlockSize < 0 {
		result.Add("flockSize", "must not be negative", "OUT_OF_RANGE")
	}
	if p.HousingCapacity < 0 {
		result.Add("housingCapacity", "must not be negative", "OUT_OF_RANGE")
	}
	if p.Email.Address != "" && !validation.ValidateEmail(p.Email.Address) {
		result.Add("email.address", "invalid email format", "INVALID_FORMAT")
	}
	if p.Phone.Address != "" && !validation.ValidatePhone(p.Phone.Address) {
		result.Add("phone.address", "invalid phone format", "INVALID_FORMAT")
	}
	if p.RiskScore != nil && (*p.RiskScore < 0 || *p.RiskScore > 1) {
		result.Add("riskScore", "must be between 0 and 1", "OUT_OF_RANGE")
	}

	return result
}
