package config

import "time"

// Chain ids of the Oasis Sapphire networks.
const (
	SapphireMainnetChainID uint64 = 23294
	SapphireTestnetChainID uint64 = 23295
)

// DefaultAgentURL is the default signing agent bridge endpoint.
const DefaultAgentURL = "http://127.0.0.1:8545"

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version:         1,
		Home:            "~/.sigilgate",
		RequiredChainID: SapphireTestnetChainID,
		Chains: []ChainConfig{
			{
				ChainID: SapphireTestnetChainID,
				Name:    "Oasis Sapphire Testnet",
				NativeCurrency: CurrencyConfig{
					Name:     "TEST",
					Symbol:   "TEST",
					Decimals: 18,
				},
				RPCURLs:      []string{"https://testnet.sapphire.oasis.dev"},
				ExplorerURLs: []string{"https://testnet.explorer.sapphire.oasis.dev"},
			},
			{
				ChainID: SapphireMainnetChainID,
				Name:    "Oasis Sapphire",
				NativeCurrency: CurrencyConfig{
					Name:     "ROSE",
					Symbol:   "ROSE",
					Decimals: 18,
				},
				RPCURLs:      []string{"https://sapphire.oasis.io"},
				ExplorerURLs: []string{"https://explorer.oasis.io/mainnet/sapphire"},
			},
		},
		Connectors: []ConnectorConfig{
			{ID: "metamask", Name: "MetaMask", Kind: "injected", Marker: "isMetaMask"},
			{ID: "coinbase", Name: "Coinbase Wallet", Kind: "coinbase", Marker: "isCoinbaseWallet"},
			{ID: "injected-sapphire", Name: "Injected (Sapphire)", Kind: "other"},
		},
		Agent: AgentConfig{
			Endpoints: []EndpointConfig{
				{Name: "browser", URL: DefaultAgentURL},
			},
			RequestTimeout: 2 * time.Minute,
			RatePerSecond:  5,
			Burst:          10,
		},
		Probe: ProbeConfig{
			SettleDelay:  100 * time.Millisecond,
			MaxAttempts:  5,
			PollInterval: 100 * time.Millisecond,
		},
		Session: SessionConfig{
			ConnectReloadDelay:    time.Second,
			DisconnectReloadDelay: 100 * time.Millisecond,
		},
		Auth: AuthConfig{
			Store:    "file",
			Path:     "~/.sigilgate/signin.json",
			ProofTTL: 24 * time.Hour,
			Domains: map[string]DomainConfig{
				"trove":      {Name: "TroveManager", Version: "1"},
				"debt_token": {Name: "DebtToken", Version: "1"},
			},
			Statement: "Only your personal signature grants access to individual data.",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.sigilgate/sigilgate.log",
		},
	}
}
