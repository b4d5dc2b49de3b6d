package session

// UnknownNetwork is shown for chain ids missing from the network table
const UnknownNetwork = "Unknown Network"

var networkNames = map[string]string{
	"0x1":      "Mainnet",
	"0x4":      "Rinkeby Testnet",
	"0x5":      "Goerli Testnet",
	"0xaa36a7": "Sepolia Testnet",
}

// NetworkName maps a hex chain id to a display name
func NetworkName(chainID string) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return UnknownNetwork
}
