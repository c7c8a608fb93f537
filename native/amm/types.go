package amm

import "math/big"

// Operation opcodes. Inbound requests arrive tagged with one of these and a
// typed payload; the dispatch layer owns the wire framing.
const (
	OpSwap             uint32 = 0x01
	OpProvideLiquidity uint32 = 0x02
	OpBurn             uint32 = 0x03
	OpCollectFees      uint32 = 0x04
	OpSetFees          uint32 = 0x05
	OpSetLockStatus    uint32 = 0x06
	OpResetGas         uint32 = 0x07
)

// OpName resolves an opcode to its canonical name for logs and the journal.
func OpName(op uint32) string {
	switch op {
	case OpSwap:
		return "swap"
	case OpProvideLiquidity:
		return "provide_liquidity"
	case OpBurn:
		return "burn_notification"
	case OpCollectFees:
		return "collect_fees"
	case OpSetFees:
		return "set_fees"
	case OpSetLockStatus:
		return "set_lock_status"
	case OpResetGas:
		return "reset_gas"
	default:
		return "unknown"
	}
}

// SwapRequest sells AmountIn of TokenIn into the pool. When HasRef is set the
// referral fee leg is paid immediately to RefAddress.
type SwapRequest struct {
	From       [20]byte
	TokenIn    string
	AmountIn   *big.Int
	MinOut     *big.Int
	HasRef     bool
	RefAddress [20]byte
}

// ProvideLiquidityRequest deposits both tokens; the over-supplied side is
// refunded rather than absorbed.
type ProvideLiquidityRequest struct {
	From     [20]byte
	Amount0  *big.Int
	Amount1  *big.Int
	MinLPOut *big.Int
}

// BurnRequest withdraws the pro-rata share of both reserves for LPAmount
// burned shares. Payouts go to ResponseAddress when set, otherwise to From.
type BurnRequest struct {
	From            [20]byte
	LPAmount        *big.Int
	ResponseAddress [20]byte
}

// SetFeesRequest replaces the whole fee schedule atomically: all three rates
// and both recipients, or nothing.
type SetFeesRequest struct {
	LPFeeBps           uint16
	ProtocolFeeBps     uint16
	RefFeeBps          uint16
	ProviderFeeAddress [20]byte
	ProtocolFeeAddress [20]byte
}

// InstructionKind tags an outbound instruction for the dispatch layer.
type InstructionKind string

const (
	InstructionTransfer  InstructionKind = "transfer"
	InstructionMintLP    InstructionKind = "mint_lp"
	InstructionRefund    InstructionKind = "refund"
	InstructionRefPayout InstructionKind = "ref_payout"
	InstructionFeePayout InstructionKind = "fee_payout"
	InstructionGasRefund InstructionKind = "gas_refund"
)

// Instruction is one outbound effect of a committed operation. The core never
// moves tokens itself: it returns an ordered instruction list after its own
// ledger has reached a consistent state, and a separate dispatch collaborator
// executes the transfers with its own failure semantics.
type Instruction struct {
	Kind   InstructionKind
	Token  string
	To     [20]byte
	Amount *big.Int
	Memo   string
}

// PoolSnapshot is the read-only view returned by the get_pool_data query.
type PoolSnapshot struct {
	Token0        string
	Token1        string
	Reserve0      *big.Int
	Reserve1      *big.Int
	TotalSupplyLP *big.Int

	CollectedProviderFee0 *big.Int
	CollectedProviderFee1 *big.Int
	CollectedProtocolFee0 *big.Int
	CollectedProtocolFee1 *big.Int

	LPFeeBps           uint16
	ProtocolFeeBps     uint16
	RefFeeBps          uint16
	ProviderFeeAddress [20]byte
	ProtocolFeeAddress [20]byte

	Locked bool
}
