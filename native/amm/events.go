package amm

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"ammpool/core/types"
)

const (
	EventTypeSwap             = "amm.swap"
	EventTypeLiquidityAdded   = "amm.liquidity.added"
	EventTypeLiquidityRemoved = "amm.liquidity.removed"
	EventTypeFeesCollected    = "amm.fees.collected"
	EventTypeFeesUpdated      = "amm.fees.updated"
	EventTypeLockUpdated      = "amm.lock.updated"
	EventTypeGasReset         = "amm.gas.reset"
)

// NewSwapEvent returns the canonical event payload for a committed swap.
func NewSwapEvent(caller [20]byte, tokenIn string, amountIn *big.Int, res *SwapResult) *types.Event {
	return &types.Event{
		Type: EventTypeSwap,
		Attributes: map[string]string{
			"caller":      hex.EncodeToString(caller[:]),
			"tokenIn":     tokenIn,
			"amountIn":    formatAmount(amountIn),
			"amountOut":   formatAmount(res.AmountOut),
			"providerFee": formatAmount(res.ProviderFee),
			"protocolFee": formatAmount(res.ProtocolFee),
			"refFee":      formatAmount(res.RefFee),
		},
	}
}

// NewLiquidityAddedEvent returns the canonical event payload for a deposit.
func NewLiquidityAddedEvent(caller [20]byte, res *AddResult) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidityAdded,
		Attributes: map[string]string{
			"caller":  hex.EncodeToString(caller[:]),
			"minted":  formatAmount(res.Minted),
			"used0":   formatAmount(res.Used0),
			"used1":   formatAmount(res.Used1),
			"refund0": formatAmount(res.Refund0),
			"refund1": formatAmount(res.Refund1),
		},
	}
}

// NewLiquidityRemovedEvent returns the canonical event payload for a burn.
func NewLiquidityRemovedEvent(caller [20]byte, lpAmount *big.Int, res *RemoveResult) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidityRemoved,
		Attributes: map[string]string{
			"caller":  hex.EncodeToString(caller[:]),
			"burned":  formatAmount(lpAmount),
			"amount0": formatAmount(res.Amount0),
			"amount1": formatAmount(res.Amount1),
		},
	}
}

// NewFeesCollectedEvent returns the canonical event payload for a collection
// event, one amount attribute per settled payout leg.
func NewFeesCollectedEvent(caller [20]byte, res *CollectResult) *types.Event {
	attrs := map[string]string{
		"caller":  hex.EncodeToString(caller[:]),
		"payouts": strconv.Itoa(len(res.Payouts)),
	}
	for i, payout := range res.Payouts {
		prefix := "payout" + strconv.Itoa(i)
		attrs[prefix+"Class"] = string(payout.Class)
		attrs[prefix+"Token"] = payout.Token
		attrs[prefix+"To"] = hex.EncodeToString(payout.To[:])
		attrs[prefix+"Amount"] = formatAmount(payout.Amount)
	}
	return &types.Event{Type: EventTypeFeesCollected, Attributes: attrs}
}

// NewFeesUpdatedEvent returns the canonical event payload after set_fees.
func NewFeesUpdatedEvent(caller [20]byte, fees FeeSchedule) *types.Event {
	return &types.Event{
		Type: EventTypeFeesUpdated,
		Attributes: map[string]string{
			"caller":             hex.EncodeToString(caller[:]),
			"lpFeeBps":           strconv.FormatUint(uint64(fees.LPFeeBps), 10),
			"protocolFeeBps":     strconv.FormatUint(uint64(fees.ProtocolFeeBps), 10),
			"refFeeBps":          strconv.FormatUint(uint64(fees.RefFeeBps), 10),
			"providerFeeAddress": hex.EncodeToString(fees.ProviderFeeAddress[:]),
			"protocolFeeAddress": hex.EncodeToString(fees.ProtocolFeeAddress[:]),
		},
	}
}

// NewLockUpdatedEvent returns the canonical event payload for a lock
// transition.
func NewLockUpdatedEvent(caller [20]byte, locked bool) *types.Event {
	return &types.Event{
		Type: EventTypeLockUpdated,
		Attributes: map[string]string{
			"caller": hex.EncodeToString(caller[:]),
			"locked": strconv.FormatBool(locked),
		},
	}
}

// NewGasResetEvent returns the canonical event payload for a reset_gas sweep.
func NewGasResetEvent(caller [20]byte, excess *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeGasReset,
		Attributes: map[string]string{
			"caller": hex.EncodeToString(caller[:]),
			"excess": formatAmount(excess),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
