package ssh

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/osbuild/cloud-image-validator/internal/cloud"
	"github.com/osbuild/cloud-image-validator/internal/log"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Instances can take a while to finish cloud-init after the engine reports
// them created, so the first connection attempt is retried with backoff.
var connectBackoff = wait.Backoff{
	Steps:    10,
	Duration: 5 * time.Second,
	Factor:   1.5,
	Cap:      2 * time.Minute,
}

// DistributeKeys waits for every instance to accept SSH with the generated
// identity and ensures the public key is present in the login user's
// authorized_keys. Instances are handled one at a time.
func DistributeKeys(ctx context.Context, inv cloud.Inventory, identityPath, pubPath string) error {
	signer, err := LoadSigner(identityPath)
	if err != nil {
		return err
	}
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("reading public key file: %w", err)
	}
	pubLine := strings.TrimSpace(string(pub))

	for _, id := range inv.IDs() {
		inst := inv[id]
		ctx := log.With(ctx, "instance", id, "host", inst.PublicDNS)

		if err := wait.ExponentialBackoffWithContext(ctx, connectBackoff, func(ctx context.Context) (bool, error) {
			client, err := Connect(inst.PublicDNS, inst.Username, signer)
			if err != nil {
				log.Debug(ctx, "instance not reachable yet", "error", err)
				return false, nil
			}
			defer client.Close()

			cmd := fmt.Sprintf(
				"grep -qxF %[1]s ~/.ssh/authorized_keys || printf '%%s\\n' %[1]s >> ~/.ssh/authorized_keys",
				shellquote.Join(pubLine),
			)
			if _, stderr, err := Exec(client, cmd); err != nil {
				return false, fmt.Errorf("installing public key: %w (stderr: %s)", err, stderr)
			}
			return true, nil
		}); err != nil {
			return fmt.Errorf("distributing SSH key to instance %q: %w", id, err)
		}
		log.Info(ctx, "SSH key distributed")
	}
	return nil
}
