package amm

import (
	"errors"
	"math/big"
	"testing"
)

func TestComputeSwapPricing(t *testing.T) {
	// 1000 in against 1,000,000/1,000,000: gross output floors to 999, the
	// provider fee rounds 2.997 up to 3 and the protocol fee 0.999 up to 1.
	res, err := ComputeSwap(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(1_000_000), false, testFees(), big.NewInt(1))
	if err != nil {
		t.Fatalf("ComputeSwap: %v", err)
	}
	if res.BaseOut.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("baseOut = %s, want 999", res.BaseOut)
	}
	if res.ProviderFee.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("providerFee = %s, want 3", res.ProviderFee)
	}
	if res.ProtocolFee.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("protocolFee = %s, want 1", res.ProtocolFee)
	}
	if res.RefFee.Sign() != 0 {
		t.Fatalf("refFee = %s, want 0 without referral", res.RefFee)
	}
	if res.AmountOut.Cmp(big.NewInt(995)) != 0 {
		t.Fatalf("amountOut = %s, want 995", res.AmountOut)
	}
}

func TestComputeSwapReferralFee(t *testing.T) {
	res, err := ComputeSwap(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(1_000_000), true, testFees(), big.NewInt(1))
	if err != nil {
		t.Fatalf("ComputeSwap: %v", err)
	}
	if res.RefFee.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("refFee = %s, want 1", res.RefFee)
	}
	if res.AmountOut.Cmp(big.NewInt(994)) != 0 {
		t.Fatalf("amountOut = %s, want 994", res.AmountOut)
	}
}

func TestComputeSwapInputValidation(t *testing.T) {
	fees := testFees()
	reserve := big.NewInt(1_000_000)

	if _, err := ComputeSwap(nil, reserve, reserve, false, fees, big.NewInt(1)); !errors.Is(err, ErrLowAmount) {
		t.Fatalf("nil amount: expected ErrLowAmount, got %v", err)
	}
	if _, err := ComputeSwap(big.NewInt(0), reserve, reserve, false, fees, big.NewInt(1)); !errors.Is(err, ErrLowAmount) {
		t.Fatalf("zero amount: expected ErrLowAmount, got %v", err)
	}
	if _, err := ComputeSwap(big.NewInt(9), reserve, reserve, false, fees, big.NewInt(10)); !errors.Is(err, ErrLowAmount) {
		t.Fatalf("below floor: expected ErrLowAmount, got %v", err)
	}
	if _, err := ComputeSwap(big.NewInt(1000), big.NewInt(0), reserve, false, fees, big.NewInt(1)); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("empty reserve: expected ErrNoLiquidity, got %v", err)
	}
	over := new(big.Int).Add(MaxCoins, big.NewInt(1))
	if _, err := ComputeSwap(over, reserve, reserve, false, fees, big.NewInt(1)); !errors.Is(err, ErrMathError) {
		t.Fatalf("oversized amount: expected ErrMathError, got %v", err)
	}
}

func TestComputeSwapZeroOutput(t *testing.T) {
	// Gross output floors to zero: floor(1*10/11) = 0.
	if _, err := ComputeSwap(big.NewInt(1), big.NewInt(10), big.NewInt(10), false, testFees(), big.NewInt(1)); !errors.Is(err, ErrZeroOutput) {
		t.Fatalf("expected ErrZeroOutput, got %v", err)
	}
}

func TestComputeSwapNearDrain(t *testing.T) {
	// A huge trade may not drain the outbound reserve: output asymptotically
	// approaches the reserve but the post-trade product never drops.
	reserveIn := big.NewInt(1_000)
	reserveOut := big.NewInt(1_000)
	res, err := ComputeSwap(big.NewInt(1_000_000), reserveIn, reserveOut, false, testFees(), big.NewInt(1))
	if err != nil {
		t.Fatalf("ComputeSwap: %v", err)
	}
	if res.BaseOut.Cmp(reserveOut) >= 0 {
		t.Fatalf("gross output %s must stay below reserve %s", res.BaseOut, reserveOut)
	}
}

func TestSwapProductNeverDecreases(t *testing.T) {
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	amounts := []int64{1000, 37, 999_999, 5, 123_456}
	tokens := []string{"ZNHB", "NHB", "ZNHB", "NHB", "NHB"}

	for i, amount := range amounts {
		before := new(big.Int).Mul(pool.Reserve0, pool.Reserve1)
		tokenIn := tokens[i]
		reserveIn, reserveOut := pool.Reserve0, pool.Reserve1
		if tokenIn == pool.Token1 {
			reserveIn, reserveOut = pool.Reserve1, pool.Reserve0
		}
		res, err := ComputeSwap(big.NewInt(amount), reserveIn, reserveOut, i%2 == 0, pool.Fees, big.NewInt(1))
		if err != nil {
			t.Fatalf("swap %d: %v", i, err)
		}
		applySwap(pool, tokenIn, big.NewInt(amount), res)
		after := new(big.Int).Mul(pool.Reserve0, pool.Reserve1)
		if after.Cmp(before) < 0 {
			t.Fatalf("swap %d shrank the product: %s -> %s", i, before, after)
		}
		if err := pool.CheckInvariants(); err != nil {
			t.Fatalf("swap %d broke invariants: %v", i, err)
		}
	}
}

func TestApplySwapAccruesFeesOnOutputToken(t *testing.T) {
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	res, err := ComputeSwap(big.NewInt(1000), pool.Reserve0, pool.Reserve1, false, pool.Fees, big.NewInt(1))
	if err != nil {
		t.Fatalf("ComputeSwap: %v", err)
	}
	applySwap(pool, pool.Token0, big.NewInt(1000), res)

	if pool.Reserve0.Cmp(big.NewInt(1_001_000)) != 0 {
		t.Fatalf("reserve0 = %s, want 1001000", pool.Reserve0)
	}
	if pool.Reserve1.Cmp(big.NewInt(999_001)) != 0 {
		t.Fatalf("reserve1 = %s, want 999001", pool.Reserve1)
	}
	if pool.CollectedProviderFee1.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("provider fee accrued %s on token1, want 3", pool.CollectedProviderFee1)
	}
	if pool.CollectedProtocolFee1.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("protocol fee accrued %s on token1, want 1", pool.CollectedProtocolFee1)
	}
	if pool.CollectedProviderFee0.Sign() != 0 || pool.CollectedProtocolFee0.Sign() != 0 {
		t.Fatal("input-side accumulators must stay untouched")
	}
}
