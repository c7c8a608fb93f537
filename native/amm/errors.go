package amm

import "errors"

// Every validation failure aborts the whole operation with no partial state
// mutation. The sentinels below are deterministic rejections: identical inputs
// yield identical errors, so callers must not retry without changing the
// request.
var (
	// ErrNoLiquidity indicates a swap or withdrawal against empty reserves.
	ErrNoLiquidity = errors.New("amm: no liquidity")
	// ErrZeroOutput indicates the computed output after fees is not positive.
	ErrZeroOutput = errors.New("amm: zero output")
	// ErrInvalidCaller indicates the caller is not in the pool's authorized set.
	ErrInvalidCaller = errors.New("amm: caller not authorized")
	// ErrInsufficientGas indicates the operating reserve would drop below the
	// configured floor.
	ErrInsufficientGas = errors.New("amm: operating reserve below floor")
	// ErrFeeOutOfRange indicates a fee rate outside [0, MaxFeeRate] basis points.
	ErrFeeOutOfRange = errors.New("amm: fee rate out of range")
	// ErrInvalidToken indicates a token identity the pool does not hold.
	ErrInvalidToken = errors.New("amm: unrecognized token")
	// ErrLowAmount indicates an input amount below the configured minimum.
	ErrLowAmount = errors.New("amm: amount below minimum")
	// ErrLowLiquidity indicates minted liquidity below the floor or a burn
	// exceeding the outstanding supply.
	ErrLowLiquidity = errors.New("amm: liquidity below minimum")
	// ErrWrongK indicates the trade would decrease the constant product.
	ErrWrongK = errors.New("amm: constant product decreased")
	// ErrMathError indicates arithmetic that would exceed the MaxCoins bound.
	ErrMathError = errors.New("amm: arithmetic out of bounds")
	// ErrInvalidRecipient indicates a zero fee or referral recipient.
	ErrInvalidRecipient = errors.New("amm: recipient not set")
	// ErrMinOutput indicates the computed output fell below the caller's
	// requested minimum.
	ErrMinOutput = errors.New("amm: output below requested minimum")
	// ErrPoolLocked indicates a mutating operation against a locked pool.
	ErrPoolLocked = errors.New("amm: pool locked")
	// ErrNilState indicates the engine was used before it was wired to a pool.
	ErrNilState = errors.New("amm: pool state not configured")
)
