package database

import "encoding/json"

func encodeJSON(v any) string {
	if v == nil {
		return "{}"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func decodeJSON(data string, v any) error {
	if data == "" {
		data = "{}"
	}
	return json.Unmarshal([]byte(data), v)
}
