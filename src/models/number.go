package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number is a float that tolerates the loose numeric encodings the backend emits:
// JSON numbers, numeric strings (with a comma or dot decimal), empty strings and null.
// Anything that is not a number decodes to 0.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(v)
		return nil
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

// Float returns the value as a float64.
func (n Number) Float() float64 { return float64(n) }

// Seconds is a duration in seconds that decodes from either a JSON number or a numeric string.
type Seconds int64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	var n Number
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = Seconds(n)
	return nil
}
