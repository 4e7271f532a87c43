package orders

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Off-chain intent signing is scoped to a fixed domain: the Arbitrum chain
// id with a null verifying contract.
const (
	signingDomainName    = "HyperliquidSignTransaction"
	signingDomainVersion = "1"
	signingChainID       = 42161
	zeroAddress          = "0x0000000000000000000000000000000000000000"

	orderPrimaryType = "HyperliquidTransaction:Order"
)

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "a", Type: "uint32"},
		{Name: "b", Type: "bool"},
		{Name: "p", Type: "string"},
		{Name: "s", Type: "string"},
		{Name: "r", Type: "bool"},
		{Name: "t", Type: "Tif"},
	},
	"Tif": {
		{Name: "limit", Type: "Limit"},
	},
	"Limit": {
		{Name: "tif", Type: "string"},
	},
	orderPrimaryType: {
		{Name: "type", Type: "string"},
		{Name: "orders", Type: "Order[]"},
		{Name: "grouping", Type: "string"},
		{Name: "nonce", Type: "uint64"},
		{Name: "vaultAddress", Type: "address"},
	},
}

func signingDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              signingDomainName,
		Version:           signingDomainVersion,
		ChainId:           math.NewHexOrDecimal256(signingChainID),
		VerifyingContract: zeroAddress,
	}
}

// orderTypedData builds the structured signing payload for a single order
// action. The signing payload is typed and nested; the flatter wire payload
// is built separately in the pipeline.
func orderTypedData(order wireOrder, nonce uint64) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: orderPrimaryType,
		Domain:      signingDomain(),
		Message: apitypes.TypedDataMessage{
			"type": "order",
			"orders": []interface{}{
				map[string]interface{}{
					"a": math.NewHexOrDecimal256(int64(order.Asset)),
					"b": order.IsBuy,
					"p": order.LimitPx,
					"s": order.Sz,
					"r": order.ReduceOnly,
					"t": map[string]interface{}{
						"limit": map[string]interface{}{
							"tif": order.Type.Limit.Tif,
						},
					},
				},
			},
			"grouping":     groupingNA,
			"nonce":        math.NewHexOrDecimal256(int64(nonce)),
			"vaultAddress": zeroAddress,
		},
	}
}
