package cart

import (
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
)

// EncodeSnapshot serializes lines into the stored snapshot form.
func EncodeSnapshot(lines []Line) (string, error) {
	if lines == nil {
		lines = []Line{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return "", errors.Wrap(err, "marshal cart snapshot")
	}
	return string(b), nil
}

// DecodeSnapshot parses a stored snapshot. Lines without an id or with a
// non-positive quantity are dropped and repeated ids are merged into the
// first occurrence.
func DecodeSnapshot(raw string) ([]Line, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var decoded []Line
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart snapshot")
	}

	lines := make([]Line, 0, len(decoded))
	index := make(map[string]int, len(decoded))
	for _, l := range decoded {
		if l.ID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := index[l.ID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.ID] = len(lines)
		lines = append(lines, l)
	}
	return lines, nil
}
