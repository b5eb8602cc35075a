package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMailbox_Validate(t *testing.T) {
	tests := []struct {
		name    string
		quota   int
		used    int
		wantErr bool
	}{
		{"empty", 250, 0, false},
		{"full", 250, 250, false},
		{"over quota", 250, 251, true},
		{"negative usage", 250, -1, true},
		{"zero quota", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Mailbox{Address: "sales@example.com", QuotaMB: tt.quota, UsedMB: tt.used}
			if tt.wantErr {
				assert.Error(t, m.Validate())
			} else {
				assert.NoError(t, m.Validate())
			}
		})
	}
}

func TestMailbox_SetUsageClampsToQuota(t *testing.T) {
	m := Mailbox{QuotaMB: 100}

	m.SetUsage(40)
	assert.Equal(t, 40, m.UsedMB)

	m.SetUsage(500)
	assert.Equal(t, 100, m.UsedMB)

	m.SetUsage(-3)
	assert.Equal(t, 0, m.UsedMB)
}

func TestAccount_FindMailbox(t *testing.T) {
	a := Account{Mailboxes: []Mailbox{{ID: "mbx_a"}, {ID: "mbx_b", Address: "b@example.com"}}}

	m, ok := a.FindMailbox("mbx_b")
	assert.True(t, ok)
	assert.Equal(t, "b@example.com", m.Address)

	_, ok = a.FindMailbox("mbx_c")
	assert.False(t, ok)
}
