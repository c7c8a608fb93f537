package amm

import "math/big"

// MinimumLiquidity is the floor on the LP shares minted by the first deposit.
// A near-zero first deposit would let the depositor manipulate the share price
// for everyone who joins later.
const MinimumLiquidity = 1000

// AddResult captures a liquidity deposit before it is applied: the shares to
// mint, the token amounts actually absorbed into the reserves, and the excess
// of the over-supplied side owed back to the depositor.
type AddResult struct {
	Minted  *big.Int
	Used0   *big.Int
	Used1   *big.Int
	Refund0 *big.Int
	Refund1 *big.Int
}

// RemoveResult captures a pro-rata withdrawal before it is applied.
type RemoveResult struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// ComputeAdd prices a liquidity deposit against the current reserves.
//
// The first deposit sets the share price: minted = isqrt(amount0 * amount1),
// rejected below MinimumLiquidity. Subsequent deposits mint against the
// current ratio; whichever token is over-supplied relative to that ratio is
// returned as a refund rather than absorbed. The counterpart requirement
// rounds up so the reserves never absorb less than the minted shares are
// worth.
func ComputeAdd(amount0, amount1, reserve0, reserve1, totalSupply *big.Int) (*AddResult, error) {
	if amount0 == nil || amount1 == nil || amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return nil, ErrLowAmount
	}
	if !withinCoins(amount0) || !withinCoins(amount1) {
		return nil, ErrMathError
	}
	if reserve0 == nil || reserve1 == nil || totalSupply == nil {
		return nil, ErrMathError
	}

	if totalSupply.Sign() == 0 {
		minted, err := sqrtProduct(amount0, amount1)
		if err != nil {
			return nil, err
		}
		if minted.Cmp(big.NewInt(MinimumLiquidity)) < 0 {
			return nil, ErrLowLiquidity
		}
		if !withinCoins(new(big.Int).Add(reserve0, amount0)) || !withinCoins(new(big.Int).Add(reserve1, amount1)) {
			return nil, ErrMathError
		}
		return &AddResult{
			Minted:  minted,
			Used0:   new(big.Int).Set(amount0),
			Used1:   new(big.Int).Set(amount1),
			Refund0: big.NewInt(0),
			Refund1: big.NewInt(0),
		}, nil
	}

	if reserve0.Sign() <= 0 || reserve1.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}

	share0, err := mulDiv(amount0, totalSupply, reserve0)
	if err != nil {
		return nil, err
	}
	share1, err := mulDiv(amount1, totalSupply, reserve1)
	if err != nil {
		return nil, err
	}

	res := &AddResult{Refund0: big.NewInt(0), Refund1: big.NewInt(0)}
	if share0.Cmp(share1) <= 0 {
		// token0 is the scarce side: absorb it fully, take only the
		// ratio-matched portion of token1.
		res.Minted = share0
		res.Used0 = new(big.Int).Set(amount0)
		used1, err := mulDivCeil(amount0, reserve1, reserve0)
		if err != nil {
			return nil, err
		}
		if used1.Cmp(amount1) > 0 {
			used1 = new(big.Int).Set(amount1)
		}
		res.Used1 = used1
		res.Refund1 = new(big.Int).Sub(amount1, used1)
	} else {
		res.Minted = share1
		res.Used1 = new(big.Int).Set(amount1)
		used0, err := mulDivCeil(amount1, reserve0, reserve1)
		if err != nil {
			return nil, err
		}
		if used0.Cmp(amount0) > 0 {
			used0 = new(big.Int).Set(amount0)
		}
		res.Used0 = used0
		res.Refund0 = new(big.Int).Sub(amount0, used0)
	}

	if res.Minted.Sign() <= 0 {
		return nil, ErrLowLiquidity
	}
	if !withinCoins(new(big.Int).Add(totalSupply, res.Minted)) ||
		!withinCoins(new(big.Int).Add(reserve0, res.Used0)) ||
		!withinCoins(new(big.Int).Add(reserve1, res.Used1)) {
		return nil, ErrMathError
	}
	return res, nil
}

// ComputeRemove prices a pro-rata withdrawal of lpAmount shares. No fee is
// charged on liquidity operations.
func ComputeRemove(lpAmount, reserve0, reserve1, totalSupply *big.Int) (*RemoveResult, error) {
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return nil, ErrLowAmount
	}
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	if lpAmount.Cmp(totalSupply) > 0 {
		return nil, ErrLowLiquidity
	}
	if reserve0 == nil || reserve1 == nil || !withinCoins(reserve0) || !withinCoins(reserve1) {
		return nil, ErrMathError
	}

	amount0, err := mulDiv(lpAmount, reserve0, totalSupply)
	if err != nil {
		return nil, err
	}
	amount1, err := mulDiv(lpAmount, reserve1, totalSupply)
	if err != nil {
		return nil, err
	}
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return nil, ErrZeroOutput
	}
	return &RemoveResult{Amount0: amount0, Amount1: amount1}, nil
}

// applyAdd commits a priced deposit atomically with the minted shares.
func applyAdd(pool *Pool, res *AddResult) {
	pool.Reserve0.Add(pool.Reserve0, res.Used0)
	pool.Reserve1.Add(pool.Reserve1, res.Used1)
	pool.TotalSupplyLP.Add(pool.TotalSupplyLP, res.Minted)
}

// applyRemove commits a priced withdrawal atomically with the burned shares.
func applyRemove(pool *Pool, lpAmount *big.Int, res *RemoveResult) {
	pool.Reserve0.Sub(pool.Reserve0, res.Amount0)
	pool.Reserve1.Sub(pool.Reserve1, res.Amount1)
	pool.TotalSupplyLP.Sub(pool.TotalSupplyLP, lpAmount)
}
