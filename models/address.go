package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const AddressLength = 20

// Address identifies an account holder, organizer, referrer or asset contract.
type Address [AddressLength]byte

// ZeroAddress is never a valid recipient.
var ZeroAddress Address

func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AddressLength*2 {
		return a, fmt.Errorf("parseAddress: invalid length %d", len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("parseAddress: %w", err)
	}
	return a, nil
}

// MustAddress is for constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
