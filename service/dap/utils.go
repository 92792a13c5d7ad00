package dap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// mapToStruct converts a JSON object (as raw bytes) to the struct type
// object. output must be a pointer to the struct object.
func mapToStruct(input json.RawMessage, output interface{}) error {
	buf := bytes.NewBuffer(input)
	if err := json.NewDecoder(buf).Decode(output); err != nil && err != io.EOF {
		if uerr, ok := err.(*json.UnmarshalTypeError); ok {
			// Format json.UnmarshalTypeError error string in our own way. E.g.,
			//   "json: cannot unmarshal number into Go struct field LaunchArgs.program of type string" (go1.16)
			//   => "cannot unmarshal number into 'program' of type string"
			return fmt.Errorf("cannot unmarshal %v into %q of type %v", uerr.Value, uerr.Field, uerr.Type.String())
		}
		return err
	}
	return nil
}
