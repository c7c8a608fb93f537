package amm

const (
	// FeeDivider scales fee rates: rates are expressed in basis points.
	FeeDivider = 10_000
	// MaxFeeRate caps each fee rate at 2%.
	MaxFeeRate = 200
)

// FeeSchedule holds the pool's three fee rates and the two accounts credited
// when accrued fees are collected. Rates apply to the gross swap output.
type FeeSchedule struct {
	LPFeeBps       uint16
	ProtocolFeeBps uint16
	RefFeeBps      uint16

	ProviderFeeAddress [20]byte
	ProtocolFeeAddress [20]byte
}

// Validate checks the rate bounds and recipient presence. A zero address is
// treated as unset.
func (f FeeSchedule) Validate() error {
	if f.LPFeeBps > MaxFeeRate || f.ProtocolFeeBps > MaxFeeRate || f.RefFeeBps > MaxFeeRate {
		return ErrFeeOutOfRange
	}
	if isZeroAddress(f.ProviderFeeAddress) || isZeroAddress(f.ProtocolFeeAddress) {
		return ErrInvalidRecipient
	}
	return nil
}

func isZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
