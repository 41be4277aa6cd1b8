package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type WordCount struct {
	Word  string
	Count int
}

// WordTable is an ordered word-frequency table, most frequent first.
type WordTable []WordCount

// MarshalJSON encodes the table as an object whose keys keep table order.
func (t WordTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, wc := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(wc.Word)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(wc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
