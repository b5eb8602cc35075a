package cpanel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantData string
		wantErrs []string
		wantMsgs []string
		ok       bool
	}{
		{
			name:     "result wrapper",
			body:     `{"result":{"data":{"a":1},"errors":null,"messages":["done"]}}`,
			wantData: `{"a":1}`,
			wantErrs: []string{},
			wantMsgs: []string{"done"},
			ok:       true,
		},
		{
			name:     "flat data",
			body:     `{"data":[1,2],"errors":["bad"],"messages":null}`,
			wantData: `[1,2]`,
			wantErrs: []string{"bad"},
			wantMsgs: []string{},
		},
		{
			name:     "null data still flat",
			body:     `{"data":null,"errors":null}`,
			wantData: `null`,
			wantErrs: []string{},
			wantMsgs: []string{},
			ok:       true,
		},
		{
			name:     "raw passthrough",
			body:     `{"uptime":42}`,
			wantData: `{"uptime":42}`,
			wantErrs: []string{},
			wantMsgs: []string{},
			ok:       true,
		},
		{
			name:     "single string error",
			body:     `{"result":{"data":null,"errors":"nope"}}`,
			wantData: `null`,
			wantErrs: []string{"nope"},
			wantMsgs: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Normalize(200, []byte(tt.body))
			assert.JSONEq(t, tt.wantData, string(env.Data))
			assert.Equal(t, tt.wantErrs, env.Errors)
			assert.Equal(t, tt.wantMsgs, env.Messages)
			assert.Equal(t, tt.ok, env.OK())
		})
	}
}

func TestEnvelope_ErrOr(t *testing.T) {
	env := &Envelope{Status: 500}
	err := env.ErrOr("Failed to get domains")
	assert.EqualError(t, err, "Failed to get domains")

	env = &Envelope{Status: 200, Errors: []string{"quota exceeded"}}
	assert.EqualError(t, env.ErrOr("fallback"), "quota exceeded")

	env = &Envelope{Status: 200, Errors: []string{}}
	assert.NoError(t, env.ErrOr("fallback"))
}

func TestEnvelope_HasData(t *testing.T) {
	assert.False(t, (&Envelope{}).HasData())
	assert.False(t, (&Envelope{Data: []byte("null")}).HasData())
	assert.True(t, (&Envelope{Data: []byte("[]")}).HasData())
}
