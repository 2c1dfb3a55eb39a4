// Package names resolves camera source IPs to operator-facing display
// names from a two-column CSV file (ip,name with a header row).
package names

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Table maps camera IP addresses to display names.
type Table map[string]string

// Load reads the CSV file. A missing file is an error: the supervisor
// treats it as a startup failure, matching the NVR-list rule.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open camera names %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse camera names %s: %w", path, err)
	}

	t := make(Table)
	for i, row := range rows {
		if i == 0 {
			// Header row.
			continue
		}
		if len(row) < 2 {
			continue
		}
		ip := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if ip != "" {
			t[ip] = name
		}
	}
	return t, nil
}

// Resolve returns the display name for ip, or the synthesized
// "Channel <id>" fallback when the table has no entry.
func (t Table) Resolve(ip, channelID string) string {
	if name, ok := t[ip]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Channel %s", channelID)
}
