package ssh

import (
	"fmt"
	"os"
	"strings"

	"github.com/osbuild/cloud-image-validator/internal/cloud"
)

// WriteInstancesConfig writes an ssh_config with one Host block per instance
// so the test runner and the printed ssh hints can address instances without
// repeating connection flags. Blocks are emitted in sorted instance order.
func WriteInstancesConfig(inv cloud.Inventory, configPath, identityPath string) error {
	var b strings.Builder
	for _, id := range inv.IDs() {
		inst := inv[id]
		fmt.Fprintf(&b, "Host %s\n", inst.PublicDNS)
		fmt.Fprintf(&b, "    HostName %s\n", inst.PublicDNS)
		fmt.Fprintf(&b, "    User %s\n", inst.Username)
		fmt.Fprintf(&b, "    IdentityFile %s\n", identityPath)
		b.WriteString("    StrictHostKeyChecking no\n")
		b.WriteString("    UserKnownHostsFile /dev/null\n")
		b.WriteString("\n")
	}
	if err := os.WriteFile(configPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing ssh config %q: %w", configPath, err)
	}
	return nil
}
