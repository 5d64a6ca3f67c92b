// Package lmsr prices outcomes of markets run by a logarithmic market scoring
// rule market maker.
//
// With funding F and n outcomes the liquidity parameter is b = F / ln(n). The
// marginal price of outcome i is exp(q_i/b) / sum_j exp(q_j/b), where q is the
// vector of net outcome tokens sold. Everything is computed with arbitrary
// precision decimals so that long sequences of trades do not drift.
package lmsr

import (
	"errors"

	"github.com/cockroachdb/apd/v3"
	"github.com/shopspring/decimal"
)

const (
	// Precision is the number of significant digits used internally.
	Precision = 40
	// PriceDecimals is the number of fractional digits of returned prices.
	PriceDecimals = 20
)

var (
	ErrZeroFunding    = errors.New("market funding must be positive")
	ErrTooFewOutcomes = errors.New("market needs at least two outcomes")
)

// Weights whose exponent is below this contribute nothing at Precision digits.
var negligibleExponent = apd.New(-110, 0)

var apdCtx = apd.BaseContext.WithPrecision(Precision)

func toApd(d decimal.Decimal) (*apd.Decimal, error) {
	v, _, err := apd.NewFromString(d.String())
	return v, err
}

func fromApd(d *apd.Decimal, places int32) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(d.Text('f'))
	if err != nil {
		return decimal.Zero, err
	}
	return v.Round(places), nil
}

func validate(funding decimal.Decimal, netSold []decimal.Decimal) error {
	if len(netSold) < 2 {
		return ErrTooFewOutcomes
	}
	if !funding.IsPositive() {
		return ErrZeroFunding
	}
	return nil
}

// liquidity returns b = F / ln(n).
func liquidity(funding decimal.Decimal, n int) (*apd.Decimal, error) {
	f, err := toApd(funding)
	if err != nil {
		return nil, err
	}
	lnN := new(apd.Decimal)
	if _, err := apdCtx.Ln(lnN, apd.New(int64(n), 0)); err != nil {
		return nil, err
	}
	b := new(apd.Decimal)
	if _, err := apdCtx.Quo(b, f, lnN); err != nil {
		return nil, err
	}
	return b, nil
}

func maxOf(values []decimal.Decimal) decimal.Decimal {
	m := values[0]
	for _, v := range values[1:] {
		if v.GreaterThan(m) {
			m = v
		}
	}
	return m
}

// shiftedWeights returns exp((q_i - max q) / b) for every outcome together with their sum.
// Shifting by the maximum keeps every exponent at or below zero.
func shiftedWeights(b *apd.Decimal, netSold []decimal.Decimal) ([]*apd.Decimal, *apd.Decimal, error) {
	qMax := maxOf(netSold)
	weights := make([]*apd.Decimal, len(netSold))
	sum := new(apd.Decimal)
	for i, q := range netSold {
		shifted, err := toApd(q.Sub(qMax))
		if err != nil {
			return nil, nil, err
		}
		x := new(apd.Decimal)
		if _, err := apdCtx.Quo(x, shifted, b); err != nil {
			return nil, nil, err
		}
		w := new(apd.Decimal)
		if x.Cmp(negligibleExponent) >= 0 {
			if _, err := apdCtx.Exp(w, x); err != nil {
				return nil, nil, err
			}
		}
		weights[i] = w
		if _, err := apdCtx.Add(sum, sum, w); err != nil {
			return nil, nil, err
		}
	}
	return weights, sum, nil
}

// MarginalPrices returns the price of every outcome given the market funding
// and the net outcome tokens sold. Prices sum to one up to the last of
// PriceDecimals fractional digits.
func MarginalPrices(funding decimal.Decimal, netSold []decimal.Decimal) ([]decimal.Decimal, error) {
	if err := validate(funding, netSold); err != nil {
		return nil, err
	}
	b, err := liquidity(funding, len(netSold))
	if err != nil {
		return nil, err
	}
	weights, sum, err := shiftedWeights(b, netSold)
	if err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		p := new(apd.Decimal)
		if _, err := apdCtx.Quo(p, w, sum); err != nil {
			return nil, err
		}
		if prices[i], err = fromApd(p, PriceDecimals); err != nil {
			return nil, err
		}
	}
	return prices, nil
}

// Cost evaluates the cost function C(q) = b * ln(sum_i exp(q_i/b)). The amount a
// trader pays to move the market from q to q' is C(q') - C(q).
func Cost(funding decimal.Decimal, netSold []decimal.Decimal) (decimal.Decimal, error) {
	if err := validate(funding, netSold); err != nil {
		return decimal.Zero, err
	}
	b, err := liquidity(funding, len(netSold))
	if err != nil {
		return decimal.Zero, err
	}
	_, sum, err := shiftedWeights(b, netSold)
	if err != nil {
		return decimal.Zero, err
	}

	lnSum := new(apd.Decimal)
	if _, err := apdCtx.Ln(lnSum, sum); err != nil {
		return decimal.Zero, err
	}
	cost := new(apd.Decimal)
	if _, err := apdCtx.Mul(cost, b, lnSum); err != nil {
		return decimal.Zero, err
	}
	qMax, err := toApd(maxOf(netSold))
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := apdCtx.Add(cost, cost, qMax); err != nil {
		return decimal.Zero, err
	}
	return fromApd(cost, PriceDecimals)
}
