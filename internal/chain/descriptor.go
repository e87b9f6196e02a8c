// Package chain keeps the signing agent on the required network.
package chain

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/config"
)

// Oasis Sapphire chain ids.
const (
	SapphireMainnet uint64 = config.SapphireMainnetChainID
	SapphireTestnet uint64 = config.SapphireTestnetChainID
)

// Currency is a chain's native currency.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Descriptor is the static description of one network.
type Descriptor struct {
	ChainID        uint64   `json:"chain_id"`
	Name           string   `json:"name"`
	NativeCurrency Currency `json:"native_currency"`
	RPCURLs        []string `json:"rpc_urls"`
	ExplorerURLs   []string `json:"explorer_urls"`
}

// HexID returns the chain id as the agent expects it, e.g. "0x5aff".
func (d Descriptor) HexID() string {
	return hexutil.EncodeUint64(d.ChainID)
}

// AddChainParams returns the wallet_addEthereumChain parameters for d.
func (d Descriptor) AddChainParams() agent.AddChainParams {
	return agent.AddChainParams{
		ChainID:   hexutil.Uint64(d.ChainID),
		ChainName: d.Name,
		NativeCurrency: agent.NativeCurrency{
			Name:     d.NativeCurrency.Name,
			Symbol:   d.NativeCurrency.Symbol,
			Decimals: d.NativeCurrency.Decimals,
		},
		RPCURLs:           append([]string(nil), d.RPCURLs...),
		BlockExplorerURLs: append([]string(nil), d.ExplorerURLs...),
	}
}

// Icon returns the icon family of the chain.
func (d Descriptor) Icon() IconFamily {
	return Icon(d.ChainID)
}

// IconFamily groups chains that share a network icon.
type IconFamily string

// Icon families.
const (
	IconSapphire IconFamily = "sapphire"
	IconGeneric  IconFamily = "generic"
)

// Icon returns the icon family for chainID. Both Sapphire networks share one.
func Icon(chainID uint64) IconFamily {
	switch chainID {
	case SapphireMainnet, SapphireTestnet:
		return IconSapphire
	default:
		return IconGeneric
	}
}

func fromConfig(cc config.ChainConfig) Descriptor {
	return Descriptor{
		ChainID: cc.ChainID,
		Name:    cc.Name,
		NativeCurrency: Currency{
			Name:     cc.NativeCurrency.Name,
			Symbol:   cc.NativeCurrency.Symbol,
			Decimals: cc.NativeCurrency.Decimals,
		},
		RPCURLs:      append([]string(nil), cc.RPCURLs...),
		ExplorerURLs: append([]string(nil), cc.ExplorerURLs...),
	}
}
