package version

import "fmt"

// Заполняются через -ldflags "-X .../internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func GetVersion() string { return version }

// ClientID - client.id для Kafka; sarama допускает только [A-Za-z0-9._-].
func ClientID(tool string) string {
	return "storefront-" + tool + "-" + version
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
