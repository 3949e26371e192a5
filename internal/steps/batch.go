package steps

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseBatch reads a "date: count" mapping. JSON objects parse too, since
// they are valid YAML. Entries come back sorted by date.
func ParseBatch(r io.Reader) ([]Entry, error) {
	var raw map[string]int
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for date, count := range raw {
		if err := ValidateDate(date); err != nil {
			return nil, err
		}
		if err := ValidateCount(count); err != nil {
			return nil, fmt.Errorf("%s: %w", date, err)
		}
		entries = append(entries, Entry{Date: date, Count: count})
	}
	Sort(entries)
	return entries, nil
}
