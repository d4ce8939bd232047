package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatus(t *testing.T) {
	expires := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	graceEnd := expires.Add(48 * time.Hour)
	grace := 48 * time.Hour

	tests := []struct {
		name    string
		account Account
		now     time.Time
		want    AccountStatus
	}{
		{"Inactive", Account{Status: INACTIVE}, expires, INACTIVE},
		{"Active Before Expiry", Account{Status: ACTIVE, SubscriptionExpires: &expires}, expires.Add(-time.Second), ACTIVE},
		{"Active Past Expiry Is Grace", Account{Status: ACTIVE, SubscriptionExpires: &expires}, expires.Add(time.Hour), GRACE},
		{"Active Past Grace Is Compressed", Account{Status: ACTIVE, SubscriptionExpires: &expires}, expires.Add(grace), COMPRESSED},
		{"Grace Within Window", Account{Status: GRACE, SubscriptionExpires: &expires, GraceEndsAt: &graceEnd}, graceEnd.Add(-time.Second), GRACE},
		{"Grace Past Window", Account{Status: GRACE, SubscriptionExpires: &expires, GraceEndsAt: &graceEnd}, graceEnd, COMPRESSED},
		{"Compressed Stays Compressed", Account{Status: COMPRESSED}, expires, COMPRESSED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.EffectiveStatus(tt.now, grace))
		})
	}
}

func TestWalletAdd(t *testing.T) {
	w := Wallet{}
	w.Add(HOLDING, 500)
	w.Add(EARNINGS, -1)

	assert.Equal(t, int64(500), w.Balance(HOLDING))
	assert.True(t, w.Negative())
}
