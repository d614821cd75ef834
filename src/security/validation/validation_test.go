package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/fxportal/src/models"
)

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var fe FieldErrors
	require.True(t, errors.As(err, &fe), "expected FieldErrors, got %v", err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	return fe
}

func TestValidateOrderForm(t *testing.T) {
	valid := models.OrderForm{
		TransactionType: "Buy",
		Amount:          "12 500,75",
		Currency:        "eur",
		ValueDate:       "2024-06-28",
		BankName:        "<b>BIAT</b>",
	}

	t.Run("valid form builds a pending order", func(t *testing.T) {
		order, err := ValidateOrderForm(valid)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionBuy, order.TransactionType)
		assert.InDelta(t, 12500.75, order.Amount.Float(), 1e-9)
		assert.Equal(t, "EUR", order.Currency)
		assert.Equal(t, models.OrderStatusPending, order.Status)
		require.NotNil(t, order.BankName)
		assert.Equal(t, "BIAT", *order.BankName)
	})

	t.Run("empty amount", func(t *testing.T) {
		form := valid
		form.Amount = ""
		_, err := ValidateOrderForm(form)
		fe := fieldErrors(t, err)
		assert.Equal(t, "amount is required", fe["amount"])
		assert.Len(t, fe, 1)
	})

	t.Run("every field wrong", func(t *testing.T) {
		_, err := ValidateOrderForm(models.OrderForm{
			TransactionType: "hold",
			Amount:          "-3",
			Currency:        "EURO",
			ValueDate:       "28/06/2024",
		})
		fe := fieldErrors(t, err)
		assert.Contains(t, fe, "transaction_type")
		assert.Contains(t, fe, "amount")
		assert.Contains(t, fe, "currency")
		assert.Contains(t, fe, "value_date")
	})
}

func TestFieldValidators(t *testing.T) {
	assert.NoError(t, ValidateEmail("client@example.tn"))
	assert.Error(t, ValidateEmail("client@localhost"))
	assert.Error(t, ValidateEmail("Client <client@example.tn>"))
	assert.Error(t, ValidateEmail(""))

	assert.NoError(t, ValidatePassword("secret"))
	assert.Error(t, ValidatePassword("12345"))

	assert.NoError(t, ValidateCurrencyCode(" usd "))
	assert.Error(t, ValidateCurrencyCode("US"))
	assert.Error(t, ValidateCurrencyCode(""))

	assert.NoError(t, ValidatePeriod("2024-02"))
	assert.Error(t, ValidatePeriod("2024-13"))

	d, err := ParseAmount("1\u202f234,5", "amount")
	require.NoError(t, err)
	assert.Equal(t, "1234.5", d.String())
}

func TestValidateSignupForm(t *testing.T) {
	form := models.SignupForm{Email: "a@b.tn", Password: "secret1", ConfirmPassword: "secret2"}
	fe := fieldErrors(t, ValidateSignupForm(form))
	assert.Equal(t, "passwords do not match", fe["confirmPassword"])

	form.ConfirmPassword = "secret1"
	assert.NoError(t, ValidateSignupForm(form))
}

func TestValidateBillingClient(t *testing.T) {
	parent := int64(7)
	c, err := ValidateBillingClient(models.BillingClient{
		ID:              7,
		ClientName:      "<script>x</script>Acme",
		MatriculeFiscal: "1234567a/m/a/000",
		FixedMonthlyFee: -1,
		ContractStart:   "2024-01-01",
		ParentClient:    &parent,
	})
	fe := fieldErrors(t, err)
	assert.Equal(t, "Acme", c.ClientName)
	assert.Equal(t, "1234567A/M/A/000", c.MatriculeFiscal)
	assert.Contains(t, fe, "fixed_monthly_fee")
	assert.Contains(t, fe, "parent_client")
	assert.NotContains(t, fe, "matricule_fiscal")
}

func TestValidatePremiumRate(t *testing.T) {
	p, err := ValidatePremiumRate(models.PremiumRate{Currency: "eur", MaturityDays: 90, Rate: 1.25})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)

	_, err = ValidatePremiumRate(models.PremiumRate{Currency: "EUR", MaturityDays: 0, Rate: -1})
	fe := fieldErrors(t, err)
	assert.Len(t, fe, 2)
}

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "'=SUM(A1)", SanitizeFreeText("  =SUM(A1) "))
	assert.Equal(t, "hello", SanitizeFreeText("<i>hello</i>"))
	assert.Equal(t, "ab", StripUnprintable("a\x00b"))
	assert.Equal(t, "plain", SanitizeForFormulaInjection("plain"))
}

func TestValidateSpreadsheet(t *testing.T) {
	xlsx := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{1}, 100)...)
	xls := append([]byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1"), bytes.Repeat([]byte{1}, 100)...)

	assert.NoError(t, ValidateSpreadsheet("orders.xlsx", bytes.NewReader(xlsx), int64(len(xlsx)), 1024))
	assert.NoError(t, ValidateSpreadsheet("orders.XLS", bytes.NewReader(xls), int64(len(xls)), 1024))

	tests := []struct {
		name    string
		file    string
		content []byte
		size    int64
	}{
		{"wrong extension", "orders.csv", []byte("a,b,c"), 5},
		{"content mismatch", "orders.xlsx", xls, int64(len(xls))},
		{"too large", "orders.xlsx", xlsx, 4096},
		{"empty", "orders.xlsx", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpreadsheet(tt.file, bytes.NewReader(tt.content), tt.size, 1024)
			assert.ErrorIs(t, err, ErrInvalidFile)
		})
	}

	t.Run("reader rewound", func(t *testing.T) {
		r := bytes.NewReader(xlsx)
		require.NoError(t, ValidateSpreadsheet("o.xlsx", r, int64(len(xlsx)), 0))
		assert.Equal(t, int64(len(xlsx)), int64(r.Len()))
	})
}

func TestValidateImageAndPDF(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32))
	detected, err := ValidateImage(bytes.NewReader(png), int64(len(png)), 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", detected)

	_, err = ValidateImage(strings.NewReader("<html></html>"), 13, 1024)
	assert.ErrorIs(t, err, ErrInvalidFile)

	pdf := []byte("%PDF-1.7\n...")
	assert.NoError(t, ValidatePDF("signed.pdf", bytes.NewReader(pdf), int64(len(pdf)), 1024))
	assert.ErrorIs(t, ValidatePDF("signed.pdf", strings.NewReader("hello"), 5, 1024), ErrInvalidFile)
	assert.ErrorIs(t, ValidatePDF("signed.png", bytes.NewReader(pdf), int64(len(pdf)), 1024), ErrInvalidFile)
}
