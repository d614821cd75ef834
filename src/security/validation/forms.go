package validation

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/fxportal/src/models"
)

var (
	maxOrderAmount = decimal.New(1, 12)
	maxPremiumRate = decimal.New(100, 0)
)

// ValidateOrderForm checks the order-entry fields and builds the order to submit.
func ValidateOrderForm(form models.OrderForm) (models.Order, error) {
	errs := FieldErrors{}

	txType := strings.ToLower(strings.TrimSpace(form.TransactionType))
	switch txType {
	case models.TransactionBuy, models.TransactionSell:
	case "":
		errs.Add("transaction_type", "transaction_type is required")
	default:
		errs.Add("transaction_type", "transaction_type must be buy or sell")
	}

	amount, err := ValidatePositiveAmount(form.Amount, "amount", maxOrderAmount)
	errs.Check("amount", err)
	errs.Check("currency", ValidateCurrencyCode(form.Currency))
	_, err = ValidateDateString(form.ValueDate, "value_date")
	errs.Check("value_date", err)

	bank := SanitizeText(strings.TrimSpace(form.BankName))
	errs.Check("bank_name", ValidateStringMaxLength(bank, MaxNameLength, "bank_name"))

	if err := errs.Err(); err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		TransactionType: txType,
		Amount:          models.Number(amount.InexactFloat64()),
		Currency:        NormalizeCurrency(form.Currency),
		ValueDate:       strings.TrimSpace(form.ValueDate),
		Status:          models.OrderStatusPending,
	}
	if bank != "" {
		order.BankName = &bank
	}
	return order, nil
}

// ValidateSignupForm checks the registration fields.
func ValidateSignupForm(form models.SignupForm) error {
	errs := FieldErrors{}
	errs.Check("email", ValidateEmail(form.Email))
	errs.Check("password", ValidatePassword(form.Password))
	if form.ConfirmPassword != form.Password {
		errs.Add("confirmPassword", "passwords do not match")
	}
	errs.Check("firstName", ValidateStringMaxLength(form.FirstName, MaxNameLength, "firstName"))
	errs.Check("lastName", ValidateStringMaxLength(form.LastName, MaxNameLength, "lastName"))
	errs.Check("company", ValidateStringMaxLength(form.Company, DefaultMaxStringLength, "company"))
	errs.Check("phone", ValidatePhone(form.Phone))
	return errs.Err()
}

// SanitizeSignupForm strips markup from the free-text fields.
func SanitizeSignupForm(form models.SignupForm) models.SignupForm {
	form.Email = strings.TrimSpace(form.Email)
	form.FirstName = SanitizeFreeText(form.FirstName)
	form.LastName = SanitizeFreeText(form.LastName)
	form.Company = SanitizeFreeText(form.Company)
	form.Phone = strings.TrimSpace(form.Phone)
	return form
}

// ValidateProfileForm sanitizes and checks the editable profile fields.
func ValidateProfileForm(form models.ProfileForm) (models.ProfileForm, error) {
	form = models.ProfileForm{
		FirstName: SanitizeFreeText(form.FirstName),
		LastName:  SanitizeFreeText(form.LastName),
		Phone:     strings.TrimSpace(form.Phone),
		Company:   SanitizeFreeText(form.Company),
	}
	errs := FieldErrors{}
	errs.Check("first_name", ValidateStringNotEmpty(form.FirstName, "first_name"))
	errs.Check("first_name", ValidateStringMaxLength(form.FirstName, MaxNameLength, "first_name"))
	errs.Check("last_name", ValidateStringNotEmpty(form.LastName, "last_name"))
	errs.Check("last_name", ValidateStringMaxLength(form.LastName, MaxNameLength, "last_name"))
	errs.Check("phone", ValidatePhone(form.Phone))
	errs.Check("company", ValidateStringMaxLength(form.Company, DefaultMaxStringLength, "company"))
	return form, errs.Err()
}

// ValidateBillingClient sanitizes and checks a billing client before it is saved.
func ValidateBillingClient(c models.BillingClient) (models.BillingClient, error) {
	c.ClientName = SanitizeFreeText(c.ClientName)
	c.Address = SanitizeFreeText(c.Address)
	c.MatriculeFiscal = strings.ToUpper(strings.TrimSpace(c.MatriculeFiscal))
	c.ContractStart = strings.TrimSpace(c.ContractStart)

	errs := FieldErrors{}
	errs.Check("client_name", ValidateStringNotEmpty(c.ClientName, "client_name"))
	errs.Check("client_name", ValidateStringMaxLength(c.ClientName, DefaultMaxStringLength, "client_name"))
	errs.Check("address", ValidateStringMaxLength(c.Address, DefaultMaxStringLength, "address"))
	errs.Check("matricule_fiscal", ValidateMatriculeFiscal(c.MatriculeFiscal))
	if c.FixedMonthlyFee.Float() < 0 {
		errs.Add("fixed_monthly_fee", "fixed_monthly_fee cannot be negative")
	}
	if c.ContractStart != "" {
		_, err := ValidateDateString(c.ContractStart, "contract_start")
		errs.Check("contract_start", err)
	}
	if c.ParentClient != nil && c.ID != 0 && *c.ParentClient == c.ID {
		errs.Add("parent_client", "a client cannot be its own parent")
	}
	return c, errs.Err()
}

// ValidatePremiumRate checks an option premium rate.
func ValidatePremiumRate(p models.PremiumRate) (models.PremiumRate, error) {
	p.Currency = NormalizeCurrency(p.Currency)
	errs := FieldErrors{}
	errs.Check("currency", ValidateCurrencyCode(p.Currency))
	if p.MaturityDays <= 0 || p.MaturityDays > 3650 {
		errs.Add("maturity_days", "maturity_days must be between 1 and 3650")
	}
	rate := decimal.NewFromFloat(p.Rate.Float())
	if rate.IsNegative() || rate.GreaterThan(maxPremiumRate) {
		errs.Add("rate", "rate must be between 0 and 100")
	}
	return p, errs.Err()
}

// ValidateOrderStatus checks an admin status change.
func ValidateOrderStatus(status string) error {
	if slices.Contains(models.OrderStatuses, status) {
		return nil
	}
	return FieldErrors{"status": "status must be one of " + strings.Join(models.OrderStatuses, ", ")}
}
