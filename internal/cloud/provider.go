package cloud

import "fmt"

// Provider identifies the cloud the resources file targets.
type Provider string

const (
	AWS    Provider = "aws"
	Azure  Provider = "azure"
	GCloud Provider = "gcloud"
)

var ErrUnknownProvider = fmt.Errorf("unknown cloud provider")

// ParseProvider validates a provider name from a resources file.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(name); p {
	case AWS, Azure, GCloud:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
