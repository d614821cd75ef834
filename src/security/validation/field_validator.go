package validation

import (
	"errors"
	"fmt"
	"maps"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrValidationFailed = errors.New("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxNameLength          = 100
	MaxCurrencyCodeLength  = 3
	MinPasswordLength      = 6
	MaxMatriculeLength     = 32
)

// FieldErrors maps a form field to its message. It is returned before any
// backend call is made.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := slices.Sorted(maps.Keys(fe))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidationFailed
}

// Add records the first message for field.
func (fe FieldErrors) Add(field, message string) {
	if _, exists := fe[field]; !exists {
		fe[field] = message
	}
}

// Check records err under field when it is not nil.
func (fe FieldErrors) Check(field string, err error) {
	if err != nil {
		fe.Add(field, strings.TrimPrefix(err.Error(), ErrValidationFailed.Error()+": "))
	}
}

// Err returns fe as an error, or nil when it is empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks a string's UTF-8 character count.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s is not in the expected format (%s)", ErrValidationFailed, fieldName, formatDescription)
	}
	return nil
}

// ValidateEmail checks a required email address.
func ValidateEmail(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "email"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, DefaultMaxStringLength, "email"); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return fmt.Errorf("%w: email is not a valid address", ErrValidationFailed)
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(s string) error {
	if utf8.RuneCountInString(s) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidationFailed, MinPasswordLength)
	}
	return nil
}

// --- Numeric Validators ---

// ParseAmount parses a user-typed decimal, accepting a comma or dot decimal
// separator and spaces between thousands.
func ParseAmount(s, fieldName string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrValidationFailed, fieldName)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a valid number", ErrValidationFailed, fieldName)
	}
	return d, nil
}

// ValidatePositiveAmount parses s and requires 0 < value <= maxVal.
func ValidatePositiveAmount(s, fieldName string, maxVal decimal.Decimal) (decimal.Decimal, error) {
	d, err := ParseAmount(s, fieldName)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be greater than 0", ErrValidationFailed, fieldName)
	}
	if d.GreaterThan(maxVal) {
		return decimal.Zero, fmt.Errorf("%w: %s must not exceed %s", ErrValidationFailed, fieldName, maxVal.String())
	}
	return d, nil
}

// --- Date Validators ---

// ValidateDateString checks a required date in YYYY-MM-DD format.
func ValidateDateString(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s is not a valid date (expected YYYY-MM-DD)", ErrValidationFailed, fieldName)
	}
	return t, nil
}

// ValidatePeriod checks a billing period in YYYY-MM format.
func ValidatePeriod(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "period"); err != nil {
		return err
	}
	if _, err := time.Parse("2006-01", trimmed); err != nil {
		return fmt.Errorf("%w: period is not valid (expected YYYY-MM)", ErrValidationFailed)
	}
	return nil
}

// --- Specific Format Validators ---

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	phoneRegex        = regexp.MustCompile(`^\+?[0-9 ().-]{6,20}$`)
	matriculeRegex    = regexp.MustCompile(`^[A-Za-z0-9/ .-]+$`)
)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateCurrencyCode checks a required ISO currency code (3 letters).
func ValidateCurrencyCode(s string) error {
	trimmed := NormalizeCurrency(s)
	if err := ValidateStringNotEmpty(trimmed, "currency"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxCurrencyCodeLength, "currency"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, currencyCodeRegex, "currency", "3 letters")
}

// ValidatePhone checks an optional phone number.
func ValidatePhone(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return ValidateStringRegex(trimmed, phoneRegex, "phone", "digits, spaces and + ( ) . -")
}

// ValidateMatriculeFiscal checks a required tax identifier.
func ValidateMatriculeFiscal(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "matricule_fiscal"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxMatriculeLength, "matricule_fiscal"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, matriculeRegex, "matricule_fiscal", "letters, digits and /")
}
