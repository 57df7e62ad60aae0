package models

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

type TokenCategory uint8

const (
	CategoryNone TokenCategory = iota
	CategoryEventTicket
	CategoryAttendanceBadge
	CategoryOrganizerCred
)

func (c TokenCategory) String() string {
	switch c {
	case CategoryNone:
		return "NONE"
	case CategoryEventTicket:
		return "EVENT_TICKET"
	case CategoryAttendanceBadge:
		return "ATTENDANCE_BADGE"
	case CategoryOrganizerCred:
		return "ORGANIZER_CRED"
	}
	return fmt.Sprintf("TokenCategory(%d)", uint8(c))
}

// Transferable is false for soulbound categories.
func (c TokenCategory) Transferable() bool {
	switch c {
	case CategoryAttendanceBadge, CategoryOrganizerCred:
		return false
	}
	return true
}

const (
	tokenIDLength  = 32
	MetadataLength = 11
)

// TokenID is the packed 256-bit token identifier, big-endian:
//
//	category(8) | eventId(64) | tierId(32) | serial(64) | metadata(88)
//
// Every component is byte aligned, so the layout is bytes
// [0] [1:9] [9:13] [13:21] [21:32].
type TokenID [tokenIDLength]byte

// TokenParts is the unpacked form of a TokenID. Field widths equal the
// packed widths, so Pack never truncates.
type TokenParts struct {
	Category TokenCategory
	EventID  uint64
	TierID   uint32
	Serial   uint64
	Metadata [MetadataLength]byte
}

func (p TokenParts) Pack() TokenID {
	var id TokenID
	id[0] = byte(p.Category)
	binary.BigEndian.PutUint64(id[1:9], p.EventID)
	binary.BigEndian.PutUint32(id[9:13], p.TierID)
	binary.BigEndian.PutUint64(id[13:21], p.Serial)
	copy(id[21:], p.Metadata[:])
	return id
}

func (id TokenID) Unpack() TokenParts {
	p := TokenParts{
		Category: TokenCategory(id[0]),
		EventID:  binary.BigEndian.Uint64(id[1:9]),
		TierID:   binary.BigEndian.Uint32(id[9:13]),
		Serial:   binary.BigEndian.Uint64(id[13:21]),
	}
	copy(p.Metadata[:], id[21:])
	return p
}

func (id TokenID) Category() TokenCategory {
	return TokenCategory(id[0])
}

func (id TokenID) EventID() uint64 {
	return binary.BigEndian.Uint64(id[1:9])
}

func (id TokenID) TierID() uint32 {
	return binary.BigEndian.Uint32(id[9:13])
}

func (id TokenID) Serial() uint64 {
	return binary.BigEndian.Uint64(id[13:21])
}

// BelongsTo checks the decoded event id against the expected event.
func (id TokenID) BelongsTo(eventID uint64) bool {
	return id.EventID() == eventID
}

func TicketID(eventID uint64, tierID uint32, serial uint64) TokenID {
	return TokenParts{Category: CategoryEventTicket, EventID: eventID, TierID: tierID, Serial: serial}.Pack()
}

func BadgeID(eventID uint64, tierID uint32, serial uint64) TokenID {
	return TokenParts{Category: CategoryAttendanceBadge, EventID: eventID, TierID: tierID, Serial: serial}.Pack()
}

func OrganizerCredID(eventID uint64) TokenID {
	return TokenParts{Category: CategoryOrganizerCred, EventID: eventID}.Pack()
}

func ParseTokenID(s string) (TokenID, error) {
	var id TokenID
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != tokenIDLength*2 {
		return id, fmt.Errorf("parseTokenID: invalid length %d", len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("parseTokenID: %w", err)
	}
	return id, nil
}

func (id TokenID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id TokenID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TokenID) UnmarshalText(text []byte) error {
	parsed, err := ParseTokenID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
