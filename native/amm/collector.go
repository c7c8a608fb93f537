package amm

import "math/big"

const (
	// RequiredMinCollectFees is the per-accumulator floor below which
	// collection is not forced: an accumulator participates in a collection
	// event only once it has reached this many units.
	RequiredMinCollectFees = 1_000_000

	// CollectorRewardBps is the reward paid to whoever triggers collection,
	// 0.1% of the collected amount, taken out of the protocol share.
	CollectorRewardBps = 10
)

// FeePayoutClass labels which accumulator a payout settles.
type FeePayoutClass string

const (
	FeeClassProvider  FeePayoutClass = "provider"
	FeeClassProtocol  FeePayoutClass = "protocol"
	FeeClassCollector FeePayoutClass = "collector"
)

// FeePayout is one (recipient, token) leg of a collection event.
type FeePayout struct {
	Class  FeePayoutClass
	Token  string
	To     [20]byte
	Amount *big.Int
}

// CollectResult lists the payout legs of a collection event in deterministic
// order: token0 provider, token0 protocol, token0 collector reward, then the
// same for token1. Legs with zero amounts are omitted.
type CollectResult struct {
	Payouts []FeePayout
}

// ComputeCollect evaluates a collection request against the pool's fee
// accumulators. Accumulators below RequiredMinCollectFees are left untouched;
// if none qualifies the second return value is false and the pool must not be
// mutated. The caller triggering the collection earns CollectorRewardBps of
// each token's collected total, capped at that token's collected protocol
// share so the provider share is never diluted.
//
// applyCollect zeroes exactly the accumulators that were paid out, after the
// payout instructions for the pre-collection amounts have been computed.
// Accrued fees are never silently dropped.
func ComputeCollect(pool *Pool, caller [20]byte) (*CollectResult, bool, error) {
	if pool == nil {
		return nil, false, ErrNilState
	}
	if isZeroAddress(caller) {
		return nil, false, ErrInvalidRecipient
	}

	threshold := big.NewInt(RequiredMinCollectFees)
	res := &CollectResult{}
	collected := false

	tokens := []struct {
		token    string
		provider *big.Int
		protocol *big.Int
	}{
		{pool.Token0, pool.CollectedProviderFee0, pool.CollectedProtocolFee0},
		{pool.Token1, pool.CollectedProviderFee1, pool.CollectedProtocolFee1},
	}
	for _, side := range tokens {
		providerDue := big.NewInt(0)
		protocolDue := big.NewInt(0)
		if side.provider != nil && side.provider.Cmp(threshold) >= 0 {
			providerDue.Set(side.provider)
		}
		if side.protocol != nil && side.protocol.Cmp(threshold) >= 0 {
			protocolDue.Set(side.protocol)
		}
		if providerDue.Sign() == 0 && protocolDue.Sign() == 0 {
			continue
		}
		collected = true

		total := new(big.Int).Add(providerDue, protocolDue)
		reward, err := mulDiv(total, big.NewInt(CollectorRewardBps), big.NewInt(FeeDivider))
		if err != nil {
			return nil, false, err
		}
		if reward.Cmp(protocolDue) > 0 {
			reward = new(big.Int).Set(protocolDue)
		}
		protocolDue.Sub(protocolDue, reward)

		if providerDue.Sign() > 0 {
			res.Payouts = append(res.Payouts, FeePayout{
				Class: FeeClassProvider, Token: side.token,
				To: pool.Fees.ProviderFeeAddress, Amount: providerDue,
			})
		}
		if protocolDue.Sign() > 0 {
			res.Payouts = append(res.Payouts, FeePayout{
				Class: FeeClassProtocol, Token: side.token,
				To: pool.Fees.ProtocolFeeAddress, Amount: protocolDue,
			})
		}
		if reward.Sign() > 0 {
			res.Payouts = append(res.Payouts, FeePayout{
				Class: FeeClassCollector, Token: side.token,
				To: caller, Amount: reward,
			})
		}
	}

	if !collected {
		return nil, false, nil
	}
	return res, true, nil
}

// applyCollect zeroes the accumulators settled by the supplied result.
func applyCollect(pool *Pool, res *CollectResult) {
	for _, payout := range res.Payouts {
		provider, protocol := pool.CollectedProviderFee0, pool.CollectedProtocolFee0
		if payout.Token == pool.Token1 {
			provider, protocol = pool.CollectedProviderFee1, pool.CollectedProtocolFee1
		}
		switch payout.Class {
		case FeeClassProvider:
			provider.SetInt64(0)
		case FeeClassProtocol, FeeClassCollector:
			protocol.SetInt64(0)
		}
	}
}
