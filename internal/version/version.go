package version

// Set at build time with
// -ldflags "-X github.com/gnosis/tradingdb/internal/version.Version=... -X github.com/gnosis/tradingdb/internal/version.Commit=..."
var (
	Version = "unknown"
	Commit  = "unknown"
)

func GetVersion() string {
	return Version
}

func GetCommit() string {
	return Commit
}
