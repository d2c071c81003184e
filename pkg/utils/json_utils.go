package utils

import (
	"encoding/json"
	"fmt"
)

func ToRawMessage(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T to JSON: %w", v, err)
	}
	return json.RawMessage(data), nil
}
