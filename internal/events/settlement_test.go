package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeBuffer(s string) string {
	parts := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		parts[i] = fmt.Sprint(s[i])
	}
	return `{"type":"Buffer","data":[` + strings.Join(parts, ",") + `]}`
}

func quoted(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestParseSettlement_Shapes(t *testing.T) {
	const logical = `{"bookingId":"665f1c2e9b1e8a0012345678","sessionId":"cs_test_1","amount":1500000,"currency":"VND","userId":"user_1"}`

	tests := []struct {
		name string
		raw  string
	}{
		{"plain object", logical},
		{"value wrapper", `{"value":` + logical + `}`},
		{"double value wrapper", `{"value":{"value":` + logical + `}}`},
		{"json string", quoted(logical)},
		{"value holding json string", `{"key":"k","value":` + quoted(logical) + `}`},
		{"node buffer", nodeBuffer(logical)},
		{"value holding node buffer", `{"value":` + nodeBuffer(logical) + `}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSettlement([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, "665f1c2e9b1e8a0012345678", s.BookingID)
			assert.Equal(t, "cs_test_1", s.SessionID)
			require.NotNil(t, s.Amount)
			assert.Equal(t, int64(1500000), *s.Amount)
			assert.Equal(t, "vnd", s.Currency)
			assert.Equal(t, "user_1", s.UserID)
		})
	}
}

func TestParseSettlement_StripeSessionID(t *testing.T) {
	s, err := ParseSettlement([]byte(`{"bookingId":"b1","stripeSessionId":"cs_live_9"}`))
	require.NoError(t, err)
	assert.Equal(t, "cs_live_9", s.SessionID)
	assert.Nil(t, s.Amount)
}

func TestParseSettlement_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"not json", `hello`},
		{"missing bookingId", `{"sessionId":"cs_1"}`},
		{"blank bookingId", `{"bookingId":"  ","sessionId":"cs_1"}`},
		{"array", `[1,2,3]`},
		{"string not json", `"just text"`},
		{"too deep", `{"value":{"value":{"value":{"value":{"value":{"value":{"bookingId":"b"}}}}}}}`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettlement([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
