package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCountryTable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "standard table",
			raw:  "EG:EGP,SA:SAR,AE:AED,US:USD",
			want: map[string]string{"EG": "EGP", "SA": "SAR", "AE": "AED", "US": "USD"},
		},
		{
			name: "lowercase and whitespace normalized",
			raw:  " eg:egp , sa:sar",
			want: map[string]string{"EG": "EGP", "SA": "SAR"},
		},
		{
			name: "malformed pairs skipped",
			raw:  "EG:EGP,bogus,:X,Y:",
			want: map[string]string{"EG": "EGP"},
		},
		{
			name: "empty input",
			raw:  "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCountryTable(tt.raw))
		})
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("STACKPAY_TEST_KEY", "value")
	assert.Equal(t, "value", getEnv("STACKPAY_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnv("STACKPAY_TEST_MISSING", "fallback"))

	t.Setenv("STACKPAY_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("STACKPAY_TEST_INT", 7))
	t.Setenv("STACKPAY_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("STACKPAY_TEST_INT", 7))
}
