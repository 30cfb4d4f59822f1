package util

import (
	"encoding/json"
	"os"
)

// WriteJSON writes obj to filename as indented JSON, the format the report
// commands emit.
func WriteJSON(filename string, obj any) error {
	data, err := json.MarshalIndent(obj, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(data, '\n'), 0644)
}
