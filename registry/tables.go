// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package registry

// NativeSymbol is the network's native asset symbol. Price feeds quote it
// directly and the quote is aliased onto the wrapped token.
const NativeSymbol = "ETH"

// WrappedNativeSymbol is the ERC-20 wrapper the native asset trades as.
const WrappedNativeSymbol = "WETH"

// FeeTokenSymbol is the symbol fees are denominated in.
const FeeTokenSymbol = "ZRX"

// DefaultChartPair is the pair charts open on.
const DefaultChartPair = "ZRX/WETH"

// DefaultFiatCode is the fiat currency used when none is configured.
const DefaultFiatCode = "USD"

var networks = map[uint64]NetworkInfo{
	1: {
		Name:            "Mainnet",
		BlockExplorer:   "https://etherscan.io",
		GenesisBlock:    4145578,
		ExchangeAddress: "0x12459c951127e0c374ff9105dda097662f027093",
		FeeTokenAddress: "0xe41d2489571d322189246dafa5ebde1f4699f498",
	},
	42: {
		Name:            "Kovan",
		BlockExplorer:   "https://kovan.etherscan.io",
		GenesisBlock:    4145578,
		ExchangeAddress: "0x90fe2af704b34e0224bf2299c838e04d4dcf1364",
		FeeTokenAddress: "0x6ff6c0ff1d68b964901f986d4c9fa3ac68346570",
	},
}

var relayAddresses = map[uint64]map[string]RelayInfo{
	1: {
		"0xa258b39954cef5cb142fd567a46cddb31a670124": {Name: "Radar Relay", Website: "https://radarrelay.com"},
		"0xeb71bad396acaa128aeadbc7dbd59ca32263de01": {Name: "IDT Exchange", Website: "https://www.idtexchange.com"},
		"0xc22d5b2951db72b44cfb8089bb8cd374a3c354ea": {Name: "OpenRelay", Website: "https://openrelay.xyz"},
		"0x173a2467cece1f752eb8416e337d0f0b58cad795": {Name: "ERC dEX", Website: "https://ercdex.com"},
	},
	42: {
		"0xa258b39954cef5cb142fd567a46cddb31a670124": {Name: "Radar Relay", Website: "https://radarrelay.com"},
	},
}

// FiatCurrencies are the fiat currencies the price feed can quote in.
var FiatCurrencies = map[string]CurrencyInfo{
	"USD": {Symbol: "$", SymbolNative: "$", DecimalDigits: 2, Code: "USD"},
	"EUR": {Symbol: "€", SymbolNative: "€", DecimalDigits: 2, Code: "EUR"},
	"GBP": {Symbol: "£", SymbolNative: "£", DecimalDigits: 2, Code: "GBP"},
	"JPY": {Symbol: "¥", SymbolNative: "￥", DecimalDigits: 0, Code: "JPY"},
	"KRW": {Symbol: "₩", SymbolNative: "₩", DecimalDigits: 0, Code: "KRW"},
}

// seedTokens is the static token metadata seed. The registry contract and
// runtime discovery extend it; addresses are lowercase.
var seedTokens = map[string]TokenInfo{
	"0xe41d2489571d322189246dafa5ebde1f4699f498": {Name: "0x Protocol Token", Symbol: "ZRX", Decimals: 18, Website: "https://0xproject.com"},
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18, Website: "https://weth.io"},
	"0x2956356cd2a2bf3202f771f50d3d14a367b48070": {Name: "Wrapped Ether (deprecated)", Symbol: "WETH", Decimals: 18, Website: "https://weth.io"},
	"0xe94327d07fc17907b4db788e5adf2ed424addff6": {Name: "Augur Reputation Token", Symbol: "REP", Decimals: 18, Website: "https://augur.net"},
	"0xe0b7927c4af23765cb51314a0e0521a9645f0e2a": {Name: "Digix DAO Token", Symbol: "DGD", Decimals: 9, Website: "https://digix.global"},
	"0xfa05a73ffe78ef8f1a739473e462c54bae6567d9": {Name: "Lunyr", Symbol: "LUN", Decimals: 18, Website: "https://lunyr.com"},
	"0xc66ea802717bfb9833400264dd12c2bceaa34a6d": {Name: "MakerDAO", Symbol: "MKR", Decimals: 18, Website: "https://makerdao.com"},
	"0xbeb9ef514a379b997e0798fdcc901ee474b6d9a1": {Name: "Melon Token", Symbol: "MLN", Decimals: 18, Website: "https://melonport.com"},
	"0x9a642d6b3368ddc662ca244badf32cda716005bc": {Name: "Qtum", Symbol: "QTUM", Decimals: 18, Website: "https://qtum.org"},
	"0xd26114cd6ee289accf82350c8d8487fedb8a0c07": {Name: "OmiseGO", Symbol: "OMG", Decimals: 18, Website: "https://omisego.network"},
	"0xb97048628db6b661d4c2aa833e95dbe1a905b280": {Name: "TenXPay", Symbol: "PAY", Decimals: 18, Website: "https://www.tenx.tech"},
	"0x86fa049857e0209aa7d9e616f7eb3b3b78ecfdb0": {Name: "Eos", Symbol: "EOS", Decimals: 18, Website: "https://eos.io"},
	"0x888666ca69e0f178ded6d75b5726cee99a87d698": {Name: "Iconomi", Symbol: "ICN", Decimals: 18, Website: "https://www.iconomi.net"},
	"0x744d70fdbe2ba4cf95131626614a1763df805b9e": {Name: "StatusNetwork", Symbol: "SNT", Decimals: 18, Website: "https://status.im"},
	"0x6810e776880c02933d47db1b9fc05908e5386b96": {Name: "Gnosis", Symbol: "GNO", Decimals: 18, Website: "https://gnosis.pm"},
	"0x0d8775f648430679a709e98d2b0cb6250d2887ef": {Name: "Basic Attention Token", Symbol: "BAT", Decimals: 18, Website: "https://basicattentiontoken.org"},
	"0xb64ef51c888972c908cfacf59b47c1afbc0ab8ac": {Name: "Storj", Symbol: "STORJ", Decimals: 8, Website: "https://storj.io"},
	"0x1f573d6fb3f13d689ff844b4ce37794d79a7ff1c": {Name: "Bancor", Symbol: "BNT", Decimals: 18, Website: "https://bancor.network"},
	"0x960b236a07cf122663c4303350609a66a7b288c0": {Name: "Aragon", Symbol: "ANT", Decimals: 18, Website: "https://aragon.one"},
	"0x0abdace70d3790235af448c88547603b945604ea": {Name: "district0x", Symbol: "DNT", Decimals: 18, Website: "https://district0x.io"},
	"0xaec2e87e0a235266d9c5adc9deb4b2e29b54d009": {Name: "SingularDTV", Symbol: "SNGLS", Decimals: 0, Website: "https://singulardtv.com"},
	"0x419d0d8bdd9af5e606ae2232ed285aff190e711b": {Name: "FunFair", Symbol: "FUN", Decimals: 8, Website: "https://funfair.io"},
	"0xaf30d2a7e90d7dc361c8c4585e9bb7d2f6f15bc7": {Name: "FirstBlood", Symbol: "1ST", Decimals: 18, Website: "https://firstblood.io"},
	"0x08711d3b02c8758f2fb3ab4e80228418a7f8e39c": {Name: "Edgeless", Symbol: "EDG", Decimals: 0, Website: "https://edgeless.io"},
	"0x607f4c5bb672230e8672085532f7e901544a7375": {Name: "iExec", Symbol: "RLC", Decimals: 9, Website: "https://iex.ec"},
	"0x41e5560054824ea6b0732e656e3ad64e20e94e45": {Name: "Civic", Symbol: "CVC", Decimals: 8, Website: "https://www.civic.com"},
	"0xf433089366899d83a9f26a773d59ec7ecf30355e": {Name: "Metal", Symbol: "MTL", Decimals: 8, Website: "https://www.metalpay.com"},
	"0xe7775a6e9bcf904eb39da2b68c5efb4f9360e08c": {Name: "Token-as-a-Service", Symbol: "TAAS", Decimals: 6, Website: "https://taas.fund"},
	"0xcb94be6f13a1182e4a4b6140cb7bf2025d28e41b": {Name: "Trustcoin", Symbol: "TRST", Decimals: 6, Website: "https://www.wetrust.io"},
	"0x1776e1f26f98b1a5df9cd347953a26dd3cb46671": {Name: "Numeraire", Symbol: "NMR", Decimals: 18, Website: "https://numer.ai"},
	"0x7c5a0ce9267ed19b22f8cae653f198e3e8daf098": {Name: "Santiment Network Token", Symbol: "SAN", Decimals: 18, Website: "https://www.santiment.net"},
	"0xdd974d5c2e2928dea5f71b9825b8b646686bd200": {Name: "Kyber Network Crystal", Symbol: "KNC", Decimals: 18, Website: "https://kyber.network"},
	"0x89d24a6b4ccb1b6faa2625fe562bdd9a23260359": {Name: "Dai Stablecoin v1.0", Symbol: "DAI", Decimals: 18, Website: "https://makerdao.com"},
}
