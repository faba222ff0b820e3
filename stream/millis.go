package stream

import (
	"encoding/json"
	"time"
)

// Millis is an epoch-milliseconds timestamp, the format device vendors put on
// reading events.
type Millis int64

func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	var value int64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*m = Millis(value)
	return nil
}

func NewMillis(t time.Time) Millis {
	return Millis(t.UnixMilli())
}
