package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/orioncx/internal/errors"
)

const sampleReply = `{
  "user_id": null,
  "user_name": "Sarah",
  "order_id": "ORD-1234",
  "product_name": "Linen shirt",
  "issue": "Package marked delivered but not received",
  "resolution": "Replacement issued",
  "sentiment": "relieved",
  "language_detected": "English",
  "agent_actions": ["Checked order status", "Issued replacement"]
}`

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeJSON, false},
		{"json", ModeJSON, false},
		{"RAW", ModeRaw, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	d, err := NewDecoder(ModeJSON)
	require.NoError(t, err)

	for name, reply := range map[string]string{
		"plain":       sampleReply,
		"json fence":  "```json\n" + sampleReply + "\n```",
		"plain fence": "```\n" + sampleReply + "\n```",
	} {
		t.Run(name, func(t *testing.T) {
			v, err := d.Decode(reply)
			require.NoError(t, err)

			obj, ok := v.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "ORD-1234", obj["order_id"])
			assert.Nil(t, obj["user_id"])
			assert.Equal(t, []any{"Checked order status", "Issued replacement"}, obj["agent_actions"])
		})
	}
}

func TestDecodeJSONRejects(t *testing.T) {
	d, err := NewDecoder(ModeJSON)
	require.NoError(t, err)

	tests := map[string]string{
		"not json":         "Here is the data you asked for",
		"array":            `["a", "b"]`,
		"wrong field type": `{"agent_actions": "called the customer"}`,
		"number sentiment": `{"sentiment": 5}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(reply)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		})
	}
}

func TestDecodeJSONPartial(t *testing.T) {
	d, err := NewDecoder("")
	require.NoError(t, err)
	assert.Equal(t, ModeJSON, d.Mode())

	v, err := d.Decode(`{"issue": "late delivery", "extra": {"nested": true}}`)
	require.NoError(t, err)
	assert.Equal(t, "late delivery", v.(map[string]any)["issue"])
}

func TestDecodeRaw(t *testing.T) {
	d, err := NewDecoder(ModeRaw)
	require.NoError(t, err)

	reply := "not even json"
	v, err := d.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, reply, v)

	v, err = d.Decode(sampleReply)
	require.NoError(t, err)
	assert.Equal(t, sampleReply, v)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence(`  {"a":1}  `))
	assert.Equal(t, `{"a":1}`, stripFence("```json{\"a\":1}```"))
}
