package services

import (
	"github.com/shopspring/decimal"

	"ticket-ledger/models"
)

var basisPoints = decimal.NewFromInt(models.BasisPoints)

// bpsOf returns floor(amount * bps / 10000) for a non-negative integral amount.
func bpsOf(amount decimal.Decimal, bps uint32) decimal.Decimal {
	q, _ := amount.Mul(decimal.NewFromInt(int64(bps))).QuoRem(basisPoints, 0)
	return q
}

// SplitAmount distributes amount across splits by floor rounding. The
// payments never sum past amount; the leftover is returned as residue.
func SplitAmount(amount decimal.Decimal, splits []models.PaymentSplit) ([]models.Allocation, decimal.Decimal) {
	out := make([]models.Allocation, 0, len(splits))
	paid := decimal.Zero
	for _, s := range splits {
		share := bpsOf(amount, s.Bps)
		paid = paid.Add(share)
		out = append(out, models.Allocation{Recipient: s.Recipient, Amount: share})
	}
	return out, amount.Sub(paid)
}

// ComputeDistribution runs gross through the fee cascade: platform fee off
// gross, protocol fee off what remains, then the net across the splits.
func ComputeDistribution(gross decimal.Decimal, platformFeeBps, protocolFeeBps uint32, splits []models.PaymentSplit) models.Distribution {
	platformFee := bpsOf(gross, platformFeeBps)
	remainder := gross.Sub(platformFee)
	protocolFee := bpsOf(remainder, protocolFeeBps)
	net := remainder.Sub(protocolFee)
	allocations, residue := SplitAmount(net, splits)
	return models.Distribution{
		Gross:       gross,
		PlatformFee: platformFee,
		ProtocolFee: protocolFee,
		Net:         net,
		Splits:      allocations,
		Residue:     residue,
	}
}
