package amm

import "math/big"

// Pool is the single mutable state instance the engine operates on: the two
// token reserves, the accrued-but-uncollected fee accumulators per token, the
// outstanding LP-share supply, the fee schedule, the lock flag, and the set of
// identities allowed to run administrative operations.
//
// Per-holder LP balances are tracked by an external share ledger; the pool only
// accounts for the total supply and the mint/burn deltas it computes.
type Pool struct {
	Token0 string
	Token1 string

	Reserve0      *big.Int
	Reserve1      *big.Int
	TotalSupplyLP *big.Int

	CollectedProviderFee0 *big.Int
	CollectedProviderFee1 *big.Int
	CollectedProtocolFee0 *big.Int
	CollectedProtocolFee1 *big.Int

	Fees   FeeSchedule
	Locked bool

	Admins map[[20]byte]struct{}
}

// NewPool constructs an empty, unlocked pool for the supplied token pair. The
// pool starts with zero reserves and zero LP supply; a pool that has been fully
// drained returns to this state and remains reusable.
func NewPool(token0, token1 string, fees FeeSchedule, admins ...[20]byte) *Pool {
	p := &Pool{
		Token0:                token0,
		Token1:                token1,
		Reserve0:              big.NewInt(0),
		Reserve1:              big.NewInt(0),
		TotalSupplyLP:         big.NewInt(0),
		CollectedProviderFee0: big.NewInt(0),
		CollectedProviderFee1: big.NewInt(0),
		CollectedProtocolFee0: big.NewInt(0),
		CollectedProtocolFee1: big.NewInt(0),
		Fees:                  fees,
		Admins:                make(map[[20]byte]struct{}, len(admins)),
	}
	for _, admin := range admins {
		if !isZeroAddress(admin) {
			p.Admins[admin] = struct{}{}
		}
	}
	return p
}

// LPDenom is the denomination used for the pool's LP shares in mint
// instructions and export records.
func (p *Pool) LPDenom() string {
	return "lp:" + p.Token0 + "-" + p.Token1
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (p *Pool) Copy() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Reserve0 = cloneAmount(p.Reserve0)
	clone.Reserve1 = cloneAmount(p.Reserve1)
	clone.TotalSupplyLP = cloneAmount(p.TotalSupplyLP)
	clone.CollectedProviderFee0 = cloneAmount(p.CollectedProviderFee0)
	clone.CollectedProviderFee1 = cloneAmount(p.CollectedProviderFee1)
	clone.CollectedProtocolFee0 = cloneAmount(p.CollectedProtocolFee0)
	clone.CollectedProtocolFee1 = cloneAmount(p.CollectedProtocolFee1)
	clone.Admins = make(map[[20]byte]struct{}, len(p.Admins))
	for admin := range p.Admins {
		clone.Admins[admin] = struct{}{}
	}
	return &clone
}

// IsAuthorized reports whether the caller may run administrative operations.
func (p *Pool) IsAuthorized(caller [20]byte) bool {
	if p == nil || isZeroAddress(caller) {
		return false
	}
	_, ok := p.Admins[caller]
	return ok
}

// HoldsToken reports whether the supplied token identity is one of the pool's
// two sides.
func (p *Pool) HoldsToken(token string) bool {
	return p != nil && token != "" && (token == p.Token0 || token == p.Token1)
}

// CheckInvariants validates the structural invariants that must hold after
// every successful operation: all balances present, non-negative, and within
// the MaxCoins bound, and the fee schedule within range. It is run when state
// is loaded from storage and by tests.
func (p *Pool) CheckInvariants() error {
	if p == nil {
		return ErrNilState
	}
	for _, v := range []*big.Int{
		p.Reserve0, p.Reserve1, p.TotalSupplyLP,
		p.CollectedProviderFee0, p.CollectedProviderFee1,
		p.CollectedProtocolFee0, p.CollectedProtocolFee1,
	} {
		if !withinCoins(v) {
			return ErrMathError
		}
	}
	if p.Fees.LPFeeBps > MaxFeeRate || p.Fees.ProtocolFeeBps > MaxFeeRate || p.Fees.RefFeeBps > MaxFeeRate {
		return ErrFeeOutOfRange
	}
	return nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
