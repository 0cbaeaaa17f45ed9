package mtec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The portal is inconsistent about quoting: ids, codes and numbers show up
// both as JSON strings and as JSON numbers depending on the endpoint. These
// types accept either form.

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flexString: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" || str == "--" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("flexFloat: %w", err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("flexFloat: %w", err)
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true", `"true"`:
		*v = true
		return nil
	case "false", `"false"`, "null", `""`:
		*v = false
		return nil
	}
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("flexBool: %w", err)
	}
	*v = f != 0
	return nil
}

// vendorValue is the {"value": ..., "unit": ...} pair used throughout the
// device endpoints.
type vendorValue struct {
	Value flexFloat `json:"value"`
	Unit  string    `json:"unit"`
}
