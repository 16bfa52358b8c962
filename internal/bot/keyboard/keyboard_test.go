package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCallback(t *testing.T) {
	payload, err := EncodeCallback("on", "12345")
	require.NoError(t, err)
	assert.Equal(t, "on:12345", payload)

	action, data, err := DecodeCallback(payload)
	require.NoError(t, err)
	assert.Equal(t, "on", action)
	assert.Equal(t, "12345", data)
}

func TestEncodeCallbackWithoutPayload(t *testing.T) {
	payload, err := EncodeCallback("help_user", "")
	require.NoError(t, err)
	assert.Equal(t, "help_user", payload)

	action, data, err := DecodeCallback(payload)
	require.NoError(t, err)
	assert.Equal(t, "help_user", action)
	assert.Empty(t, data)
}

func TestEncodeCallbackRejectsOversizedData(t *testing.T) {
	_, err := EncodeCallback("on", strings.Repeat("9", CallbackDataLimitBytes))
	assert.Error(t, err)
}

func TestDecodeCallbackEmpty(t *testing.T) {
	_, _, err := DecodeCallback("")
	assert.Error(t, err)
}

func TestFarmToggleCarriesUserID(t *testing.T) {
	markup := NewBuilder(nil).FarmToggle(42)

	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "on:42", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "off:42", markup.InlineKeyboard[0][1].Data)
}

func TestGroupNotiLayout(t *testing.T) {
	markup := NewBuilder(nil).GroupNoti(7)

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "gcnoti_on:7", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "gcnoti_off:7", markup.InlineKeyboard[0][1].Data)
	assert.Equal(t, "gcnoti_change:7", markup.InlineKeyboard[1][0].Data)
}
