package crypto

import (
	"errors"
	"math/big"
)

// ErrFactorizationFailed is returned when FactorPQ cannot split pq into
// two nontrivial factors within its iteration budget. This should never
// happen for a genuine product of two primes, the only shape the
// handshake's pq is specified to take.
var ErrFactorizationFailed = errors.New("crypto: failed to factor pq")

// FactorPQ splits the handshake's 64-bit pq into its two prime factors
// p < q, using Brent's variant of Pollard's rho algorithm, implemented
// directly against math/big (needed regardless, to avoid 64-bit
// multiplication overflow in the modular step).
func FactorPQ(pq uint64) (p, q uint64, err error) {
	if pq%2 == 0 {
		return 2, pq / 2, nil
	}

	n := new(big.Int).SetUint64(pq)
	d := pollardBrent(n)
	if d == nil || d.Cmp(n) == 0 || d.Sign() == 0 {
		return 0, 0, ErrFactorizationFailed
	}

	a := d.Uint64()
	b := pq / a
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

// pollardBrent returns a nontrivial divisor of n, or nil on failure.
func pollardBrent(n *big.Int) *big.Int {
	if n.ProbablyPrime(20) {
		return nil
	}

	one := big.NewInt(1)
	var x, y, ys, q, g, c, tmp big.Int
	x.SetInt64(2)
	y.SetInt64(2)
	c.SetInt64(1)
	q.SetInt64(1)
	g.SetInt64(1)

	m := int64(128)
	var r, k int64 = 1, 0

	for seed := int64(1); g.Cmp(one) <= 0 && seed < 64; seed++ {
		x.SetInt64(seed + 1)
		y.Set(&x)
		c.SetInt64(seed)
		g.SetInt64(1)
		q.SetInt64(1)
		r = 1

		for g.Cmp(one) == 0 {
			x.Set(&y)
			for i := int64(0); i < r; i++ {
				y.Mul(&y, &y)
				y.Add(&y, &c)
				y.Mod(&y, n)
			}
			k = 0
			for k < r && g.Cmp(one) == 0 {
				ys.Set(&y)
				for i := int64(0); i < minI64(m, r-k); i++ {
					y.Mul(&y, &y)
					y.Add(&y, &c)
					y.Mod(&y, n)
					tmp.Sub(&x, &y)
					if tmp.Sign() < 0 {
						tmp.Neg(&tmp)
					}
					q.Mul(&q, &tmp)
					q.Mod(&q, n)
				}
				g.GCD(nil, nil, &q, n)
				k += m
			}
			r *= 2
			if r > 1<<20 {
				break
			}
		}

		if g.Cmp(n) == 0 {
			for {
				ys.Mul(&ys, &ys)
				ys.Add(&ys, &c)
				ys.Mod(&ys, n)
				tmp.Sub(&x, &ys)
				if tmp.Sign() < 0 {
					tmp.Neg(&tmp)
				}
				g.GCD(nil, nil, &tmp, n)
				if g.Cmp(one) > 0 {
					break
				}
			}
		}
	}

	if g.Cmp(one) > 0 && g.Cmp(n) != 0 {
		return new(big.Int).Set(&g)
	}
	return nil
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
