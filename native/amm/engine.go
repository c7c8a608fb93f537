package amm

import (
	"math"
	"math/big"
	"sync"
	"time"

	"ammpool/core/events"
	"ammpool/core/types"
	nativecommon "ammpool/native/common"
	"ammpool/observability"
)

const moduleName = "amm"

// GasView reports the operating resource balance available to the pool's
// execution context. The balance itself is accounted externally; the engine
// only evaluates it as a precondition before mutating state.
type GasView interface {
	OperatingBalance() *big.Int
}

type ammEvent struct {
	evt *types.Event
}

func (e ammEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ammEvent) Event() *types.Event { return e.evt }

// Engine is the pool controller: it owns the pool state, serializes every
// operation behind a single exclusive guard, validates lock status,
// authorization, and resource floors, and delegates pricing to the pure
// compute functions. External effects are returned as ordered instruction
// lists only after the pool's own ledger has reached a consistent state.
type Engine struct {
	mu   sync.Mutex
	pool *Pool

	ledger  *Ledger
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics *observability.PoolMetrics

	gas    GasView
	minGas *big.Int

	quota nativecommon.Quota
	usage map[[20]byte]nativecommon.QuotaNow

	minSwapAmount *big.Int
	nowFn         func() int64
}

// NewEngine constructs a controller bound to the supplied pool. The engine
// starts with a no-op emitter, no persistence, and an input floor of one unit.
func NewEngine(pool *Pool) *Engine {
	return &Engine{
		pool:          pool,
		emitter:       events.NoopEmitter{},
		metrics:       observability.Pool(),
		minSwapAmount: big.NewInt(1),
		usage:         make(map[[20]byte]nativecommon.QuotaNow),
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetLedger wires the engine to the persistence layer. Without a ledger the
// engine operates purely in memory.
func (e *Engine) SetLedger(ledger *Ledger) { e.ledger = ledger }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the operator circuit breaker consulted before every
// operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetMetrics overrides the prometheus registry recording operation activity.
// The engine starts with the shared pool registry; passing nil disables
// recording entirely.
func (e *Engine) SetMetrics(m *observability.PoolMetrics) { e.metrics = m }

// SetGasView wires the operating-resource balance and the floor it must retain
// before any non-admin mutating operation is admitted.
func (e *Engine) SetGasView(view GasView, floor *big.Int) {
	e.gas = view
	e.minGas = cloneAmount(floor)
}

// SetQuota configures the optional per-address operation quota.
func (e *Engine) SetQuota(q nativecommon.Quota) { e.quota = q }

// SetMinSwapAmount overrides the configured swap input floor.
func (e *Engine) SetMinSwapAmount(minAmount *big.Int) {
	if minAmount == nil || minAmount.Sign() <= 0 {
		e.minSwapAmount = big.NewInt(1)
		return
	}
	e.minSwapAmount = new(big.Int).Set(minAmount)
}

// SetNowFunc overrides the time source. Primarily intended for deterministic
// testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// admit runs the shared preconditions for a mutating operation: configured
// state, circuit breaker, lock status, authorization, resource floor, and the
// per-address quota. It never mutates pool state.
func (e *Engine) admit(caller [20]byte, admin bool, units *big.Int) error {
	if e.pool == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.pool.Locked {
		return ErrPoolLocked
	}
	if admin && !e.pool.IsAuthorized(caller) {
		return ErrInvalidCaller
	}
	if !admin {
		if err := e.checkGasFloor(); err != nil {
			return err
		}
		if err := e.consumeQuota(caller, units); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkGasFloor() error {
	if e.gas == nil || e.minGas == nil {
		return nil
	}
	balance := e.gas.OperatingBalance()
	if balance == nil || balance.Cmp(e.minGas) < 0 {
		return ErrInsufficientGas
	}
	return nil
}

func (e *Engine) consumeQuota(caller [20]byte, units *big.Int) error {
	if !e.quota.Enabled() {
		return nil
	}
	epochSeconds := e.quota.EpochSeconds
	if epochSeconds == 0 {
		epochSeconds = 60
	}
	now := e.nowFn()
	if now < 0 {
		now = 0
	}
	epoch := uint64(now) / uint64(epochSeconds)
	next, err := nativecommon.CheckQuota(e.quota, epoch, e.usage[caller], 1, unitsOf(units))
	if err != nil {
		return err
	}
	e.usage[caller] = next
	return nil
}

func unitsOf(v *big.Int) uint64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}

// commit persists the mutated working copy and its journal record in one
// atomic ledger write, swaps the working copy in as the live state, and
// finally emits the event. Persistence failures leave both memory and storage
// untouched, so a failed commit rejects the whole operation.
func (e *Engine) commit(working *Pool, record *OperationRecord, evt *types.Event) error {
	if e.ledger != nil {
		if record != nil {
			if err := e.ledger.Commit(working, record); err != nil {
				return err
			}
		} else if err := e.ledger.SavePool(working); err != nil {
			return err
		}
	}
	e.pool = working
	if evt != nil {
		e.emitter.Emit(ammEvent{evt: evt})
	}
	return nil
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start))
}

// Swap sells req.AmountIn of req.TokenIn into the pool and returns the
// outbound transfer instructions: the net output to the trader and, for
// referral swaps, the immediate referral payout.
func (e *Engine) Swap(caller [20]byte, req SwapRequest) ([]Instruction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	instructions, err := e.swapLocked(caller, req)
	e.observe(OpName(OpSwap), start, err)
	return instructions, err
}

func (e *Engine) swapLocked(caller [20]byte, req SwapRequest) ([]Instruction, error) {
	if err := e.admit(caller, false, req.AmountIn); err != nil {
		return nil, err
	}
	pool := e.pool
	if !pool.HoldsToken(req.TokenIn) {
		return nil, ErrInvalidToken
	}
	if req.HasRef && isZeroAddress(req.RefAddress) {
		return nil, ErrInvalidRecipient
	}
	if isZeroAddress(req.From) {
		return nil, ErrInvalidRecipient
	}

	reserveIn, reserveOut := pool.Reserve0, pool.Reserve1
	tokenOut := pool.Token1
	if req.TokenIn == pool.Token1 {
		reserveIn, reserveOut = pool.Reserve1, pool.Reserve0
		tokenOut = pool.Token0
	}

	res, err := ComputeSwap(req.AmountIn, reserveIn, reserveOut, req.HasRef, pool.Fees, e.minSwapAmount)
	if err != nil {
		return nil, err
	}
	if req.MinOut != nil && res.AmountOut.Cmp(req.MinOut) < 0 {
		return nil, ErrMinOutput
	}

	working := pool.Copy()
	applySwap(working, req.TokenIn, req.AmountIn, res)
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}

	record := &OperationRecord{
		Op:       OpSwap,
		Caller:   caller,
		TokenIn:  req.TokenIn,
		AmountIn: cloneAmount(req.AmountIn),
	}
	if tokenOut == pool.Token0 {
		record.Amount0 = cloneAmount(res.BaseOut)
		record.Fee0 = new(big.Int).Add(res.ProviderFee, res.ProtocolFee)
	} else {
		record.Amount1 = cloneAmount(res.BaseOut)
		record.Fee1 = new(big.Int).Add(res.ProviderFee, res.ProtocolFee)
	}
	record.CreatedAt = e.nowFn()

	if err := e.commit(working, record, NewSwapEvent(caller, req.TokenIn, req.AmountIn, res)); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.AddSwapVolume(req.TokenIn, amountFloat(req.AmountIn))
		e.metrics.AddFeeVolume(tokenOut, string(FeeClassProvider), amountFloat(res.ProviderFee))
		e.metrics.AddFeeVolume(tokenOut, string(FeeClassProtocol), amountFloat(res.ProtocolFee))
	}

	instructions := []Instruction{{
		Kind:   InstructionTransfer,
		Token:  tokenOut,
		To:     req.From,
		Amount: res.AmountOut,
		Memo:   "swap output",
	}}
	if res.RefFee.Sign() > 0 {
		instructions = append(instructions, Instruction{
			Kind:   InstructionRefPayout,
			Token:  tokenOut,
			To:     req.RefAddress,
			Amount: res.RefFee,
			Memo:   "referral fee",
		})
	}
	return instructions, nil
}

// ProvideLiquidity deposits both tokens and returns the LP mint instruction
// plus refund instructions for whichever side was over-supplied.
func (e *Engine) ProvideLiquidity(caller [20]byte, req ProvideLiquidityRequest) ([]Instruction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	instructions, err := e.provideLocked(caller, req)
	e.observe(OpName(OpProvideLiquidity), start, err)
	return instructions, err
}

func (e *Engine) provideLocked(caller [20]byte, req ProvideLiquidityRequest) ([]Instruction, error) {
	units := new(big.Int).Add(cloneAmount(req.Amount0), cloneAmount(req.Amount1))
	if err := e.admit(caller, false, units); err != nil {
		return nil, err
	}
	if isZeroAddress(req.From) {
		return nil, ErrInvalidRecipient
	}
	pool := e.pool

	res, err := ComputeAdd(req.Amount0, req.Amount1, pool.Reserve0, pool.Reserve1, pool.TotalSupplyLP)
	if err != nil {
		return nil, err
	}
	if req.MinLPOut != nil && res.Minted.Cmp(req.MinLPOut) < 0 {
		return nil, ErrMinOutput
	}

	working := pool.Copy()
	applyAdd(working, res)
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}

	record := &OperationRecord{
		Op:        OpProvideLiquidity,
		Caller:    caller,
		Amount0:   cloneAmount(res.Used0),
		Amount1:   cloneAmount(res.Used1),
		LPDelta:   cloneAmount(res.Minted),
		CreatedAt: e.nowFn(),
	}
	if err := e.commit(working, record, NewLiquidityAddedEvent(caller, res)); err != nil {
		return nil, err
	}

	instructions := []Instruction{{
		Kind:   InstructionMintLP,
		Token:  pool.LPDenom(),
		To:     req.From,
		Amount: res.Minted,
		Memo:   "liquidity provided",
	}}
	if res.Refund0.Sign() > 0 {
		instructions = append(instructions, Instruction{
			Kind: InstructionRefund, Token: pool.Token0, To: req.From, Amount: res.Refund0, Memo: "excess token0",
		})
	}
	if res.Refund1.Sign() > 0 {
		instructions = append(instructions, Instruction{
			Kind: InstructionRefund, Token: pool.Token1, To: req.From, Amount: res.Refund1, Memo: "excess token1",
		})
	}
	return instructions, nil
}

// Burn withdraws the pro-rata share of both reserves for the burned LP amount.
// The share ledger has already destroyed the shares when this notification
// arrives; a failure here must bounce the burn back to the ledger instead.
func (e *Engine) Burn(caller [20]byte, req BurnRequest) ([]Instruction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	instructions, err := e.burnLocked(caller, req)
	e.observe(OpName(OpBurn), start, err)
	return instructions, err
}

func (e *Engine) burnLocked(caller [20]byte, req BurnRequest) ([]Instruction, error) {
	if err := e.admit(caller, false, req.LPAmount); err != nil {
		return nil, err
	}
	pool := e.pool

	recipient := req.ResponseAddress
	if isZeroAddress(recipient) {
		recipient = req.From
	}
	if isZeroAddress(recipient) {
		return nil, ErrInvalidRecipient
	}

	res, err := ComputeRemove(req.LPAmount, pool.Reserve0, pool.Reserve1, pool.TotalSupplyLP)
	if err != nil {
		return nil, err
	}

	working := pool.Copy()
	applyRemove(working, req.LPAmount, res)
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}

	record := &OperationRecord{
		Op:        OpBurn,
		Caller:    caller,
		Amount0:   cloneAmount(res.Amount0),
		Amount1:   cloneAmount(res.Amount1),
		LPDelta:   cloneAmount(req.LPAmount),
		CreatedAt: e.nowFn(),
	}
	if err := e.commit(working, record, NewLiquidityRemovedEvent(caller, req.LPAmount, res)); err != nil {
		return nil, err
	}

	var instructions []Instruction
	if res.Amount0.Sign() > 0 {
		instructions = append(instructions, Instruction{
			Kind: InstructionTransfer, Token: pool.Token0, To: recipient, Amount: res.Amount0, Memo: "liquidity withdrawn",
		})
	}
	if res.Amount1.Sign() > 0 {
		instructions = append(instructions, Instruction{
			Kind: InstructionTransfer, Token: pool.Token1, To: recipient, Amount: res.Amount1, Memo: "liquidity withdrawn",
		})
	}
	return instructions, nil
}

// CollectFees settles the fee accumulators that have reached the collection
// threshold. When none qualifies the call is a silent no-op: no instructions,
// no error, no state change.
func (e *Engine) CollectFees(caller [20]byte) ([]Instruction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	instructions, err := e.collectLocked(caller)
	e.observe(OpName(OpCollectFees), start, err)
	return instructions, err
}

func (e *Engine) collectLocked(caller [20]byte) ([]Instruction, error) {
	if err := e.admit(caller, false, nil); err != nil {
		return nil, err
	}
	pool := e.pool

	res, collected, err := ComputeCollect(pool, caller)
	if err != nil {
		return nil, err
	}
	if !collected {
		return nil, nil
	}

	working := pool.Copy()
	applyCollect(working, res)
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}

	record := &OperationRecord{Op: OpCollectFees, Caller: caller, CreatedAt: e.nowFn()}
	record.Fee0, record.Fee1 = big.NewInt(0), big.NewInt(0)
	for _, payout := range res.Payouts {
		if payout.Token == pool.Token0 {
			record.Fee0.Add(record.Fee0, payout.Amount)
		} else {
			record.Fee1.Add(record.Fee1, payout.Amount)
		}
	}
	if err := e.commit(working, record, NewFeesCollectedEvent(caller, res)); err != nil {
		return nil, err
	}

	instructions := make([]Instruction, 0, len(res.Payouts))
	for _, payout := range res.Payouts {
		instructions = append(instructions, Instruction{
			Kind:   InstructionFeePayout,
			Token:  payout.Token,
			To:     payout.To,
			Amount: payout.Amount,
			Memo:   string(payout.Class) + " fees",
		})
	}
	return instructions, nil
}

// SetFees replaces the whole fee schedule atomically. Authorized callers only.
func (e *Engine) SetFees(caller [20]byte, req SetFeesRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	err := e.setFeesLocked(caller, req)
	e.observe(OpName(OpSetFees), start, err)
	return err
}

func (e *Engine) setFeesLocked(caller [20]byte, req SetFeesRequest) error {
	if err := e.admit(caller, true, nil); err != nil {
		return err
	}

	fees := FeeSchedule{
		LPFeeBps:           req.LPFeeBps,
		ProtocolFeeBps:     req.ProtocolFeeBps,
		RefFeeBps:          req.RefFeeBps,
		ProviderFeeAddress: req.ProviderFeeAddress,
		ProtocolFeeAddress: req.ProtocolFeeAddress,
	}
	if err := fees.Validate(); err != nil {
		return err
	}

	working := e.pool.Copy()
	working.Fees = fees

	record := &OperationRecord{Op: OpSetFees, Caller: caller, CreatedAt: e.nowFn()}
	return e.commit(working, record, NewFeesUpdatedEvent(caller, fees))
}

// SetLockStatus transitions the pool between Active and Locked. Unlocking is
// the one mutating operation permitted while the pool is locked.
func (e *Engine) SetLockStatus(caller [20]byte, locked bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	err := e.setLockLocked(caller, locked)
	e.observe(OpName(OpSetLockStatus), start, err)
	return err
}

func (e *Engine) setLockLocked(caller [20]byte, locked bool) error {
	if e.pool == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.pool.IsAuthorized(caller) {
		return ErrInvalidCaller
	}
	if e.pool.Locked == locked {
		return nil
	}

	working := e.pool.Copy()
	working.Locked = locked

	record := &OperationRecord{Op: OpSetLockStatus, Caller: caller, CreatedAt: e.nowFn()}
	return e.commit(working, record, NewLockUpdatedEvent(caller, locked))
}

// ResetGas sweeps the operating balance above the configured floor back to the
// authorized caller. Without a gas view the call is a no-op.
func (e *Engine) ResetGas(caller [20]byte) ([]Instruction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	instructions, err := e.resetGasLocked(caller)
	e.observe(OpName(OpResetGas), start, err)
	return instructions, err
}

func (e *Engine) resetGasLocked(caller [20]byte) ([]Instruction, error) {
	if e.pool == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.pool.IsAuthorized(caller) {
		return nil, ErrInvalidCaller
	}
	if e.gas == nil || e.minGas == nil {
		return nil, nil
	}
	balance := e.gas.OperatingBalance()
	if balance == nil {
		return nil, nil
	}
	excess := new(big.Int).Sub(balance, e.minGas)
	if excess.Sign() <= 0 {
		return nil, nil
	}

	record := &OperationRecord{Op: OpResetGas, Caller: caller, AmountIn: cloneAmount(excess), CreatedAt: e.nowFn()}
	if e.ledger != nil {
		if err := e.ledger.Append(record); err != nil {
			return nil, err
		}
	}
	e.emitter.Emit(ammEvent{evt: NewGasResetEvent(caller, excess)})

	return []Instruction{{
		Kind:   InstructionGasRefund,
		To:     caller,
		Amount: excess,
		Memo:   "operating reserve sweep",
	}}, nil
}

// PoolData returns a read-only snapshot of the full pool state.
func (e *Engine) PoolData() (PoolSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return PoolSnapshot{}, ErrNilState
	}
	p := e.pool
	return PoolSnapshot{
		Token0:                p.Token0,
		Token1:                p.Token1,
		Reserve0:              cloneAmount(p.Reserve0),
		Reserve1:              cloneAmount(p.Reserve1),
		TotalSupplyLP:         cloneAmount(p.TotalSupplyLP),
		CollectedProviderFee0: cloneAmount(p.CollectedProviderFee0),
		CollectedProviderFee1: cloneAmount(p.CollectedProviderFee1),
		CollectedProtocolFee0: cloneAmount(p.CollectedProtocolFee0),
		CollectedProtocolFee1: cloneAmount(p.CollectedProtocolFee1),
		LPFeeBps:              p.Fees.LPFeeBps,
		ProtocolFeeBps:        p.Fees.ProtocolFeeBps,
		RefFeeBps:             p.Fees.RefFeeBps,
		ProviderFeeAddress:    p.Fees.ProviderFeeAddress,
		ProtocolFeeAddress:    p.Fees.ProtocolFeeAddress,
		Locked:                p.Locked,
	}, nil
}

// Reserves returns the current reserve balances.
func (e *Engine) Reserves() (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, nil, ErrNilState
	}
	return cloneAmount(e.pool.Reserve0), cloneAmount(e.pool.Reserve1), nil
}

// TotalSupply returns the outstanding LP-share supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNilState
	}
	return cloneAmount(e.pool.TotalSupplyLP), nil
}

func amountFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
