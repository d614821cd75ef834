package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNumberDecoding(t *testing.T) {
	var row struct {
		A Number  `json:"a"`
		B Number  `json:"b"`
		C Number  `json:"c"`
		D Number  `json:"d"`
		E Number  `json:"e"`
		F Number  `json:"f"`
		G *Number `json:"g"`
	}
	err := json.Unmarshal([]byte(`{"a": 1.5, "b": "2,25", "c": null, "d": "", "e": "n/a", "g": null}`), &row)
	require.NoError(t, err)
	assert.Equal(t, 1.5, row.A.Float())
	assert.Equal(t, 2.25, row.B.Float())
	assert.Zero(t, row.C)
	assert.Zero(t, row.D)
	assert.Zero(t, row.E)
	assert.Zero(t, row.F)
	assert.Nil(t, row.G)
}

func TestSession(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		var s Session
		assert.False(t, s.IsAuthenticated())
		assert.False(t, s.IsAdmin("Admin"))
		assert.Nil(t, s.Token())
	})

	t.Run("admin", func(t *testing.T) {
		s := Session{Email: "ops@example.tn", IDToken: "tok", Roles: []string{"Admin"}}
		assert.True(t, s.IsAuthenticated())
		assert.True(t, s.IsAdmin(""))
		assert.False(t, s.IsAdmin("Ops"))
	})

	t.Run("expires in as string", func(t *testing.T) {
		var s Session
		require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.tn","idToken":"x","expiresIn":"3600"}`), &s))
		assert.Equal(t, Seconds(3600), s.ExpiresIn)
	})

	t.Run("rotation keeps refresh token when absent", func(t *testing.T) {
		s := Session{Email: "a@b.tn", IDToken: "old", RefreshToken: "r1"}
		rotated := s.WithToken(&oauth2.Token{AccessToken: "new", Expiry: time.Now().Add(time.Hour)})
		assert.Equal(t, "new", rotated.IDToken)
		assert.Equal(t, "r1", rotated.RefreshToken)
		assert.Equal(t, "old", s.IDToken)
	})
}

func TestAuthResponseRoles(t *testing.T) {
	r := AuthResponse{Roles: []string{"User"}, Role: "Admin"}
	assert.Equal(t, []string{"User", "Admin"}, r.AllRoles())
	assert.Equal(t, []string{}, AuthResponse{}.AllRoles())
}

func TestCanAdvanceInvoice(t *testing.T) {
	assert.True(t, CanAdvanceInvoice(InvoiceStatusDraft, InvoiceStatusSent))
	assert.True(t, CanAdvanceInvoice(InvoiceStatusSent, InvoiceStatusPaid))
	assert.False(t, CanAdvanceInvoice(InvoiceStatusDraft, InvoiceStatusPaid))
	assert.False(t, CanAdvanceInvoice(InvoiceStatusPaid, InvoiceStatusSent))
	assert.False(t, CanAdvanceInvoice(InvoiceStatusSent, InvoiceStatusSent))
	assert.False(t, CanAdvanceInvoice("void", InvoiceStatusSent))
}

func TestTCARecordDate(t *testing.T) {
	for _, raw := range []string{"2024-03-05", "2024-03-05T10:00:00Z", "05/03/2024", "2024-03-05 08:30:00"} {
		d, ok := TCARecord{TransactionDate: raw}.Date()
		require.True(t, ok, raw)
		assert.Equal(t, time.March, d.Month(), raw)
		assert.Equal(t, 2024, d.Year(), raw)
	}
	_, ok := TCARecord{}.Date()
	assert.False(t, ok)

	r := TCARecord{Amount: 1000, ExecutionRate: 3.2}
	assert.InDelta(t, 3200, r.NotionalTND(), 1e-9)
}
