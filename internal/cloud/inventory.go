// Package cloud holds the instance inventory model shared between the
// infrastructure controller, the SSH setup and the test runner.
package cloud

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Instance is the connection metadata for a single provisioned instance.
type Instance struct {
	PublicDNS string `json:"public_dns"`
	Username  string `json:"username"`
}

// Inventory maps instance identifiers to their connection metadata.
type Inventory map[string]Instance

// IDs returns the instance identifiers in sorted order. Map iteration order
// is not stable, and every artifact derived from the inventory (ssh config,
// printed hints) needs deterministic output.
func (inv Inventory) IDs() []string {
	ids := make([]string, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WriteFile persists the inventory snapshot as JSON.
func (inv Inventory) WriteFile(path string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling instance inventory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing instance inventory to %q: %w", path, err)
	}
	return nil
}

// ReadFile loads an inventory snapshot written by WriteFile.
func ReadFile(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instance inventory: %w", err)
	}
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing instance inventory %q: %w", path, err)
	}
	return inv, nil
}
