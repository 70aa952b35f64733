// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

// Package order reconstructs human-readable orders from raw fillOrder
// transaction calldata and cross-checks them against the recorded order
// hash.
package order

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// FillOrderSelector is the 4-byte method id of
// fillOrder(address[5],uint256[6],uint256,bool,uint8,bytes32,bytes32),
// the only supported fill method.
const FillOrderSelector = "0xbc61394a"

const (
	wordChars  = 64
	paramWords = 16

	// minCalldataChars is "0x" + selector + 16 32-byte words.
	minCalldataChars = 2 + 8 + paramWords*wordChars
)

// Fixed word indices of the fillOrder parameters.
const (
	wordMaker = iota
	wordTaker
	wordMakerToken
	wordTakerToken
	wordFeeRecipient
	wordMakerTokenAmount
	wordTakerTokenAmount
	wordMakerFee
	wordTakerFee
	wordExpiration
	wordSalt
	_ // fillTakerTokenAmount
	_ // shouldThrowOnInsufficientBalanceOrAllowance
	wordSigV
	wordSigR
	wordSigS
)

// ErrUnsupportedMethod marks calldata whose selector is not fillOrder.
var ErrUnsupportedMethod = errors.New("unsupported fill method")

// ErrShortCalldata marks calldata shorter than the fixed fillOrder layout.
var ErrShortCalldata = errors.New("calldata too short")

// ErrHashMismatch marks a decoded order whose recomputed hash does not
// match the trade's recorded hash. It indicates a decoding assumption
// failure, never a transient fault.
var ErrHashMismatch = errors.New("order hash mismatch")

// FillArgs are the raw decoded fillOrder parameters.
type FillArgs struct {
	Maker        string
	Taker        string
	MakerToken   string
	TakerToken   string
	FeeRecipient string

	MakerTokenAmount *big.Int
	TakerTokenAmount *big.Int
	MakerFee         *big.Int
	TakerFee         *big.Int
	Expiration       *big.Int
	Salt             *big.Int

	V uint8
	R string
	S string
}

// ParseFillCalldata decodes a transaction's input data. The total length
// is validated before any field is extracted.
func ParseFillCalldata(input string) (*FillArgs, error) {
	if len(input) < 10 {
		return nil, fmt.Errorf("calldata has no selector: %w", ErrShortCalldata)
	}
	if input[:10] != FillOrderSelector {
		return nil, fmt.Errorf("selector %s: %w", input[:10], ErrUnsupportedMethod)
	}
	if len(input) < minCalldataChars {
		return nil, fmt.Errorf("calldata %d chars, want %d: %w", len(input), minCalldataChars, ErrShortCalldata)
	}

	word := func(i int) string {
		off := 10 + i*wordChars
		return input[off : off+wordChars]
	}

	return &FillArgs{
		Maker:            wordAddress(word(wordMaker)),
		Taker:            wordAddress(word(wordTaker)),
		MakerToken:       wordAddress(word(wordMakerToken)),
		TakerToken:       wordAddress(word(wordTakerToken)),
		FeeRecipient:     wordAddress(word(wordFeeRecipient)),
		MakerTokenAmount: wordBigInt(word(wordMakerTokenAmount)),
		TakerTokenAmount: wordBigInt(word(wordTakerTokenAmount)),
		MakerFee:         wordBigInt(word(wordMakerFee)),
		TakerFee:         wordBigInt(word(wordTakerFee)),
		Expiration:       wordBigInt(word(wordExpiration)),
		Salt:             wordBigInt(word(wordSalt)),
		V:                uint8(wordBigInt(word(wordSigV)).Uint64()),
		R:                "0x" + word(wordSigR),
		S:                "0x" + word(wordSigS),
	}, nil
}

// wordAddress takes the rightmost 20 bytes of a 32-byte word.
func wordAddress(word string) string {
	return strings.ToLower("0x" + word[24:])
}

func wordBigInt(word string) *big.Int {
	n := new(big.Int)
	n.SetString(word, 16)
	return n
}
