package amm

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MaxCoins bounds every reserve, amount, and LP share the engine handles:
// 2^120 - 1. The product of two in-bound values fits a 256-bit word, so all
// intermediate arithmetic runs on uint256 with explicit overflow checks and is
// converted back to big.Int at the boundary.
var MaxCoins = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))

var maxCoinsWord = func() *uint256.Int {
	w, overflow := uint256.FromBig(MaxCoins)
	if overflow {
		panic("amm: MaxCoins exceeds 256 bits")
	}
	return w
}()

// coinsWord validates that v is a non-nil, non-negative integer within the
// MaxCoins bound and returns its uint256 representation.
func coinsWord(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrMathError
	}
	w, overflow := uint256.FromBig(v)
	if overflow || w.Gt(maxCoinsWord) {
		return nil, ErrMathError
	}
	return w, nil
}

// withinCoins reports whether v lies in [0, MaxCoins].
func withinCoins(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(MaxCoins) <= 0
}

func wordResult(w *uint256.Int) (*big.Int, error) {
	if w.Gt(maxCoinsWord) {
		return nil, ErrMathError
	}
	return w.ToBig(), nil
}

// mulDiv returns floor(a*b/d) with the result bounded by MaxCoins.
func mulDiv(a, b, d *big.Int) (*big.Int, error) {
	wa, err := coinsWord(a)
	if err != nil {
		return nil, err
	}
	wb, err := coinsWord(b)
	if err != nil {
		return nil, err
	}
	wd, err := coinsWord(d)
	if err != nil {
		return nil, err
	}
	if wd.IsZero() {
		return nil, ErrMathError
	}
	product, overflow := new(uint256.Int).MulOverflow(wa, wb)
	if overflow {
		return nil, ErrMathError
	}
	return wordResult(product.Div(product, wd))
}

// mulDivCeil returns ceil(a*b/d) with the result bounded by MaxCoins. Fee
// amounts always round up so the pool never under-collects.
func mulDivCeil(a, b, d *big.Int) (*big.Int, error) {
	wa, err := coinsWord(a)
	if err != nil {
		return nil, err
	}
	wb, err := coinsWord(b)
	if err != nil {
		return nil, err
	}
	wd, err := coinsWord(d)
	if err != nil {
		return nil, err
	}
	if wd.IsZero() {
		return nil, ErrMathError
	}
	product, overflow := new(uint256.Int).MulOverflow(wa, wb)
	if overflow {
		return nil, ErrMathError
	}
	bump := new(uint256.Int).SubUint64(wd, 1)
	sum, carry := new(uint256.Int).AddOverflow(product, bump)
	if carry {
		return nil, ErrMathError
	}
	return wordResult(sum.Div(sum, wd))
}

// sqrtProduct returns isqrt(a*b), the floor of the square root of the product.
// The result of two in-bound factors is always within MaxCoins.
func sqrtProduct(a, b *big.Int) (*big.Int, error) {
	wa, err := coinsWord(a)
	if err != nil {
		return nil, err
	}
	wb, err := coinsWord(b)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(wa, wb)
	if overflow {
		return nil, ErrMathError
	}
	return wordResult(product.Sqrt(product))
}

// productGE reports whether a0*b0 >= a1*b1. Both products fit a 256-bit word
// for in-bound factors; callers must have validated the inputs.
func productGE(a0, b0, a1, b1 *uint256.Int) bool {
	left := new(uint256.Int).Mul(a0, b0)
	right := new(uint256.Int).Mul(a1, b1)
	return !left.Lt(right)
}
