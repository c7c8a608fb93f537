package amm

import (
	"errors"
	"math/big"
	"testing"
)

func TestComputeCollectBelowThresholdIsNoop(t *testing.T) {
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	pool.CollectedProviderFee0 = big.NewInt(500_000)
	pool.CollectedProtocolFee0 = big.NewInt(600_000)

	res, collected, err := ComputeCollect(pool, testTraderAddr)
	if err != nil {
		t.Fatalf("ComputeCollect: %v", err)
	}
	if collected || res != nil {
		t.Fatal("accumulators below the threshold must not trigger collection")
	}
	if pool.CollectedProviderFee0.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatal("no-op collection must leave accumulators untouched")
	}
}

func TestComputeCollectSplitsReward(t *testing.T) {
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	pool.CollectedProviderFee0 = big.NewInt(2_000_000)
	pool.CollectedProtocolFee0 = big.NewInt(1_000_000)

	res, collected, err := ComputeCollect(pool, testTraderAddr)
	if err != nil {
		t.Fatalf("ComputeCollect: %v", err)
	}
	if !collected {
		t.Fatal("expected a collection event")
	}
	if len(res.Payouts) != 3 {
		t.Fatalf("expected 3 payout legs, got %d", len(res.Payouts))
	}

	provider, protocol, collector := res.Payouts[0], res.Payouts[1], res.Payouts[2]
	if provider.Class != FeeClassProvider || provider.Amount.Cmp(big.NewInt(2_000_000)) != 0 || provider.To != testProviderAddr {
		t.Fatalf("provider leg wrong: %+v", provider)
	}
	// Reward is 0.1% of the 3,000,000 total, carved from the protocol share.
	if collector.Class != FeeClassCollector || collector.Amount.Cmp(big.NewInt(3000)) != 0 || collector.To != testTraderAddr {
		t.Fatalf("collector leg wrong: %+v", collector)
	}
	if protocol.Class != FeeClassProtocol || protocol.Amount.Cmp(big.NewInt(997_000)) != 0 || protocol.To != testProtocolAddr {
		t.Fatalf("protocol leg wrong: %+v", protocol)
	}
}

func TestComputeCollectPerAccumulator(t *testing.T) {
	// Only the token0 provider accumulator qualifies. The reward is capped by
	// the collected protocol share, which is zero here, so no reward is paid.
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	pool.CollectedProviderFee0 = big.NewInt(1_000_000)
	pool.CollectedProtocolFee0 = big.NewInt(600_000)
	pool.CollectedProviderFee1 = big.NewInt(999_999)

	res, collected, err := ComputeCollect(pool, testTraderAddr)
	if err != nil {
		t.Fatalf("ComputeCollect: %v", err)
	}
	if !collected {
		t.Fatal("token0 provider accumulator is at the threshold")
	}
	if len(res.Payouts) != 1 {
		t.Fatalf("expected only the provider leg, got %d", len(res.Payouts))
	}
	leg := res.Payouts[0]
	if leg.Class != FeeClassProvider || leg.Token != pool.Token0 || leg.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected payout leg: %+v", leg)
	}

	applyCollect(pool, res)
	if pool.CollectedProviderFee0.Sign() != 0 {
		t.Fatal("settled accumulator must be zeroed")
	}
	if pool.CollectedProtocolFee0.Cmp(big.NewInt(600_000)) != 0 {
		t.Fatal("unsettled protocol accumulator must keep accruing")
	}
	if pool.CollectedProviderFee1.Cmp(big.NewInt(999_999)) != 0 {
		t.Fatal("token1 accumulator below the threshold must keep accruing")
	}

	// The second collection has nothing left to settle.
	_, collected, err = ComputeCollect(pool, testTraderAddr)
	if err != nil {
		t.Fatalf("second ComputeCollect: %v", err)
	}
	if collected {
		t.Fatal("collection must be idempotent once accumulators are settled")
	}
}

func TestComputeCollectBothTokens(t *testing.T) {
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	pool.CollectedProviderFee0 = big.NewInt(1_000_000)
	pool.CollectedProtocolFee0 = big.NewInt(1_000_000)
	pool.CollectedProviderFee1 = big.NewInt(1_000_000)
	pool.CollectedProtocolFee1 = big.NewInt(1_000_000)

	res, collected, err := ComputeCollect(pool, testTraderAddr)
	if err != nil {
		t.Fatalf("ComputeCollect: %v", err)
	}
	if !collected || len(res.Payouts) != 6 {
		t.Fatalf("expected 6 payout legs across both tokens, got %d", len(res.Payouts))
	}
	if res.Payouts[0].Token != pool.Token0 || res.Payouts[3].Token != pool.Token1 {
		t.Fatal("payout legs must be ordered token0 first")
	}

	applyCollect(pool, res)
	for _, acc := range []*big.Int{
		pool.CollectedProviderFee0, pool.CollectedProtocolFee0,
		pool.CollectedProviderFee1, pool.CollectedProtocolFee1,
	} {
		if acc.Sign() != 0 {
			t.Fatalf("all settled accumulators must be zero, got %s", acc)
		}
	}
}

func TestComputeCollectRejectsZeroCaller(t *testing.T) {
	pool := testPool(t, 1_000_000, 1_000_000, 1_000_000)
	if _, _, err := ComputeCollect(pool, [20]byte{}); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}
