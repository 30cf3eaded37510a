package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Fragments of the deployed marketplace contracts. Only the members this
// client calls are listed.
const productABI = `[
	{"type":"function","name":"getProductData","stateMutability":"view",
	 "inputs":[{"name":"_productId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"productId","type":"uint256"},
		{"name":"sellerId","type":"uint256"},
		{"name":"unitPrice","type":"uint256"},
		{"name":"waranteeDuration","type":"uint256"},
		{"name":"title","type":"string"},
		{"name":"whenToExpectDelivery","type":"uint256"}]}]},
	{"type":"function","name":"getProducts","stateMutability":"view",
	 "inputs":[{"name":"start","type":"uint256"},{"name":"end","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"productId","type":"uint256"},
		{"name":"sellerId","type":"uint256"},
		{"name":"unitPrice","type":"uint256"},
		{"name":"waranteeDuration","type":"uint256"},
		{"name":"title","type":"string"},
		{"name":"whenToExpectDelivery","type":"uint256"}]}]},
	{"type":"function","name":"listProduct","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"_unitPrice","type":"uint256"},
		{"name":"_title","type":"string"},
		{"name":"_waranteeDuration","type":"uint256"},
		{"name":"_whenToExpectDelivery","type":"uint256"}],
	 "outputs":[]},
	{"type":"event","name":"ProductListed","anonymous":false,
	 "inputs":[
		{"name":"productId","type":"uint256","indexed":true},
		{"name":"sellerId","type":"uint256","indexed":true}]}
]`

const userABI = `[
	{"type":"function","name":"register","stateMutability":"nonpayable",
	 "inputs":[{"name":"_lastName","type":"string"},{"name":"_firstName","type":"string"}],
	 "outputs":[]},
	{"type":"function","name":"verifySeller","stateMutability":"nonpayable",
	 "inputs":[{"name":"_account","type":"address"}],"outputs":[]},
	{"type":"function","name":"getUserData","stateMutability":"view",
	 "inputs":[{"name":"_account","type":"address"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"userId","type":"uint256"},
		{"name":"firstName","type":"string"},
		{"name":"lastName","type":"string"},
		{"name":"account","type":"address"},
		{"name":"role","type":"uint8"},
		{"name":"verificationStatus","type":"uint8"}]}]},
	{"type":"function","name":"getUsers","stateMutability":"view",
	 "inputs":[{"name":"start","type":"uint256"},{"name":"end","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"userId","type":"uint256"},
		{"name":"firstName","type":"string"},
		{"name":"lastName","type":"string"},
		{"name":"account","type":"address"},
		{"name":"role","type":"uint8"},
		{"name":"verificationStatus","type":"uint8"}]}]}
]`

const escrowABI = `[
	{"type":"function","name":"getAcceptedTokens","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"isAccepted","stateMutability":"view",
	 "inputs":[{"name":"tokenSymbol","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"updateDeliveryStatus","stateMutability":"nonpayable",
	 "inputs":[{"name":"payRef","type":"uint256"},{"name":"productId","type":"uint256"},{"name":"isDelivered","type":"bool"}],
	 "outputs":[]}
]`

const ecommerceABI = `[
	{"type":"function","name":"checkOutWithNative","stateMutability":"payable",
	 "inputs":[{"name":"payToken","type":"string"}],"outputs":[]},
	{"type":"function","name":"checkOutWithUSD","stateMutability":"nonpayable",
	 "inputs":[{"name":"payToken","type":"string"}],"outputs":[]},
	{"type":"event","name":"SuccessfulCheckout","anonymous":false,
	 "inputs":[
		{"name":"_userId","type":"uint256","indexed":true},
		{"name":"_paymentRefence","type":"uint256","indexed":true},
		{"name":"_currency","type":"string","indexed":false},
		{"name":"_amountPaid","type":"uint256","indexed":false}]}
]`

type contractABIs struct {
	product   abi.ABI
	escrow    abi.ABI
	ecommerce abi.ABI
	user      abi.ABI
}

func parseABIs() (contractABIs, error) {
	var out contractABIs
	for _, item := range []struct {
		name string
		src  string
		dst  *abi.ABI
	}{
		{"product", productABI, &out.product},
		{"escrow", escrowABI, &out.escrow},
		{"ecommerce", ecommerceABI, &out.ecommerce},
		{"user", userABI, &out.user},
	} {
		parsed, err := abi.JSON(strings.NewReader(item.src))
		if err != nil {
			return contractABIs{}, fmt.Errorf("failed to parse %s ABI: %w", item.name, err)
		}
		*item.dst = parsed
	}
	return out, nil
}
