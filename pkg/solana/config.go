package solana

type Environment string

const (
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
)

var monikers = map[string]Environment{
	"devnet":       EnvironmentDev,
	"d":            EnvironmentDev,
	"testnet":      EnvironmentTest,
	"t":            EnvironmentTest,
	"mainnet-beta": EnvironmentProd,
	"m":            EnvironmentProd,
	"localhost":    EnvironmentLocal,
	"l":            EnvironmentLocal,
}

// ResolveEnvironment expands a cluster moniker such as "devnet" or "l" into
// its JSON-RPC URL. Any other value is returned unchanged.
func ResolveEnvironment(endpoint string) string {
	if env, ok := monikers[endpoint]; ok {
		return string(env)
	}
	return endpoint
}
