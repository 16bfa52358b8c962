package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// ErrNoCallback indicates the update carried no callback payload.
var ErrNoCallback = errors.New("update carries no callback")

// EncodeCallback joins an action with its payload, enforcing Telegram's
// callback-data size limit.
func EncodeCallback(action, data string) (string, error) {
	payload := action
	if data != "" {
		payload = action + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data back into action and payload.
func DecodeCallback(callbackData string) (action, data string, err error) {
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	idx := strings.Index(callbackData, CallbackDataSeparator)
	if idx == -1 {
		return callbackData, "", nil
	}

	return callbackData[:idx], callbackData[idx+len(CallbackDataSeparator):], nil
}
