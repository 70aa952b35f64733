// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package order

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashOrder computes the canonical order hash the exchange contract uses:
// keccak-256 over the tightly packed exchange, maker, taker, makerToken,
// takerToken, and feeRecipient addresses followed by the six uint256
// parameters (amounts, fees, expiration, salt) as 32-byte big-endian
// words.
func HashOrder(exchangeAddress string, args *FillArgs) (string, error) {
	buf := make([]byte, 0, 6*20+6*32)

	for _, addr := range []string{
		exchangeAddress,
		args.Maker,
		args.Taker,
		args.MakerToken,
		args.TakerToken,
		args.FeeRecipient,
	} {
		b, err := addressBytes(addr)
		if err != nil {
			return "", err
		}
		buf = append(buf, b...)
	}

	for _, n := range []*big.Int{
		args.MakerTokenAmount,
		args.TakerTokenAmount,
		args.MakerFee,
		args.TakerFee,
		args.Expiration,
		args.Salt,
	} {
		buf = append(buf, uint256Bytes(n)...)
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(buf)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

func addressBytes(addr string) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(s) != 40 {
		return nil, fmt.Errorf("bad address %q", addr)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad address %q: %w", addr, err)
	}
	return b, nil
}

func uint256Bytes(n *big.Int) []byte {
	out := make([]byte, 32)
	if n != nil {
		n.FillBytes(out)
	}
	return out
}
