package amm

import "math/big"

// SwapResult captures the priced trade before it is applied: the gross output
// taken from the outbound reserve, the fee split carved out of it, and the net
// amount owed to the trader.
type SwapResult struct {
	BaseOut     *big.Int
	AmountOut   *big.Int
	ProviderFee *big.Int
	ProtocolFee *big.Int
	RefFee      *big.Int
}

// ComputeSwap prices amountIn against the supplied reserves under the
// constant-product formula. All arithmetic is integer: the gross output rounds
// down, every fee rounds up, so the pool never under-collects and the trader
// never receives more than the formula allows. minAmount is the configured
// input floor.
//
// The result is purely computed; applySwap commits it to pool state.
func ComputeSwap(amountIn, reserveIn, reserveOut *big.Int, hasRef bool, fees FeeSchedule, minAmount *big.Int) (*SwapResult, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrLowAmount
	}
	if minAmount != nil && amountIn.Cmp(minAmount) < 0 {
		return nil, ErrLowAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if !withinCoins(amountIn) || !withinCoins(reserveIn) || !withinCoins(reserveOut) {
		return nil, ErrMathError
	}

	newReserveIn := new(big.Int).Add(reserveIn, amountIn)
	if !withinCoins(newReserveIn) {
		return nil, ErrMathError
	}

	// baseOut = floor(amountIn * reserveOut / (reserveIn + amountIn))
	baseOut, err := mulDiv(amountIn, reserveOut, newReserveIn)
	if err != nil {
		return nil, err
	}

	feeDivider := big.NewInt(FeeDivider)
	providerFee, err := mulDivCeil(baseOut, big.NewInt(int64(fees.LPFeeBps)), feeDivider)
	if err != nil {
		return nil, err
	}
	protocolFee, err := mulDivCeil(baseOut, big.NewInt(int64(fees.ProtocolFeeBps)), feeDivider)
	if err != nil {
		return nil, err
	}
	refFee := big.NewInt(0)
	if hasRef {
		refFee, err = mulDivCeil(baseOut, big.NewInt(int64(fees.RefFeeBps)), feeDivider)
		if err != nil {
			return nil, err
		}
	}

	amountOut := new(big.Int).Set(baseOut)
	amountOut.Sub(amountOut, providerFee)
	amountOut.Sub(amountOut, protocolFee)
	amountOut.Sub(amountOut, refFee)
	if amountOut.Sign() <= 0 {
		return nil, ErrZeroOutput
	}

	// Post-trade product must not fall below the pre-trade product. Floor
	// division already guarantees this; the guard protects against rounding
	// regressions that would let value be extracted from the reserves.
	newReserveOut := new(big.Int).Sub(reserveOut, baseOut)
	if newReserveOut.Sign() < 0 {
		return nil, ErrMathError
	}
	wIn, err := coinsWord(reserveIn)
	if err != nil {
		return nil, err
	}
	wOut, err := coinsWord(reserveOut)
	if err != nil {
		return nil, err
	}
	wNewIn, err := coinsWord(newReserveIn)
	if err != nil {
		return nil, err
	}
	wNewOut, err := coinsWord(newReserveOut)
	if err != nil {
		return nil, err
	}
	if !productGE(wNewIn, wNewOut, wIn, wOut) {
		return nil, ErrWrongK
	}

	return &SwapResult{
		BaseOut:     baseOut,
		AmountOut:   amountOut,
		ProviderFee: providerFee,
		ProtocolFee: protocolFee,
		RefFee:      refFee,
	}, nil
}

// applySwap commits a priced trade: the inbound reserve grows by amountIn, the
// outbound reserve shrinks by the gross output, and the provider/protocol
// shares accrue to the matching accumulators. The referral fee is never
// accumulated; it leaves as an immediate payout instruction.
func applySwap(pool *Pool, tokenIn string, amountIn *big.Int, res *SwapResult) {
	if tokenIn == pool.Token0 {
		pool.Reserve0.Add(pool.Reserve0, amountIn)
		pool.Reserve1.Sub(pool.Reserve1, res.BaseOut)
		pool.CollectedProviderFee1.Add(pool.CollectedProviderFee1, res.ProviderFee)
		pool.CollectedProtocolFee1.Add(pool.CollectedProtocolFee1, res.ProtocolFee)
		return
	}
	pool.Reserve1.Add(pool.Reserve1, amountIn)
	pool.Reserve0.Sub(pool.Reserve0, res.BaseOut)
	pool.CollectedProviderFee0.Add(pool.CollectedProviderFee0, res.ProviderFee)
	pool.CollectedProtocolFee0.Add(pool.CollectedProtocolFee0, res.ProtocolFee)
}
