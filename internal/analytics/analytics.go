// Package analytics derives distribution metrics from a reconstructed cap
// table (spec §4.6). Every function here is pure over a captable.Snapshot.
package analytics

import (
	"math"
	"math/big"
	"sort"

	"chainequity/internal/captable"
)

// Bucket is one distribution-bucket row.
type Bucket struct {
	Label          string  `json:"label"`
	HolderCount    int     `json:"holderCount"`
	TotalOwnership float64 `json:"totalOwnership"`
}

// Overview bundles the full set of derived analytics for a snapshot.
type Overview struct {
	Buckets               []Bucket `json:"buckets"`
	MedianBalance         string   `json:"medianBalance"`
	MeanBalance           string   `json:"meanBalance"`
	Top10Concentration    float64  `json:"top10Concentration"`
	HHI                   float64  `json:"hhi"`
	Gini                  float64  `json:"gini"`
	DecentralizationScore float64  `json:"decentralizationScore"`
	ConcentrationCategory string   `json:"concentrationCategory"`
}

// bucketBound pairs a human label with the ownership-percentage lower bound
// it captures (spec §4.6 distribution buckets).
type bucketBound struct {
	label string
	min   float64 // inclusive lower bound in percent
}

var bucketBounds = []bucketBound{
	{"≥10%", 10},
	{"1%–10%", 1},
	{"0.1%–1%", 0.1},
	{"0.01%–0.1%", 0.01},
	{"0%–0.01%", 0},
}

// Distribution computes the five ownership buckets of spec §4.6.
func Distribution(snap *captable.Snapshot) []Bucket {
	buckets := make([]Bucket, len(bucketBounds))
	for i, b := range bucketBounds {
		buckets[i] = Bucket{Label: b.label}
	}
	for _, e := range snap.Entries {
		for i, b := range bucketBounds {
			if e.OwnershipPercentage >= b.min {
				buckets[i].HolderCount++
				buckets[i].TotalOwnership += e.OwnershipPercentage
				break
			}
		}
	}
	return buckets
}

// sortedRawBalances returns the raw balances as big.Int, sorted ascending —
// 256-bit balances would lose precision as float64, and spec §8 requires
// exact big-integer equality for totals, so the statistics below stay in
// math/big as long as the arithmetic permits.
func sortedRawBalances(snap *captable.Snapshot) []*big.Int {
	vals := make([]*big.Int, len(snap.Entries))
	for i, e := range snap.Entries {
		n, ok := new(big.Int).SetString(e.RawBalance, 10)
		if !ok {
			n = new(big.Int)
		}
		vals[i] = n
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].Cmp(vals[j]) < 0 })
	return vals
}

// Median returns the median raw balance; even-length lists average the two
// middle values (spec §4.6). The average of two big integers can be odd, so
// the result is rendered with one fractional digit of precision.
func Median(snap *captable.Snapshot) string {
	vals := sortedRawBalances(snap)
	n := len(vals)
	if n == 0 {
		return "0"
	}
	if n%2 == 1 {
		return vals[n/2].String()
	}
	sum := new(big.Int).Add(vals[n/2-1], vals[n/2])
	return divRound1(sum, big.NewInt(2))
}

// Mean returns the arithmetic mean raw balance, rendered with one fractional
// digit of precision.
func Mean(snap *captable.Snapshot) string {
	vals := sortedRawBalances(snap)
	if len(vals) == 0 {
		return "0"
	}
	sum := new(big.Int)
	for _, v := range vals {
		sum.Add(sum, v)
	}
	return divRound1(sum, big.NewInt(int64(len(vals))))
}

// divRound1 renders num/den truncated to one fractional decimal digit; the
// fraction is omitted when that digit is 0 (so 30/2 renders as "15").
func divRound1(num, den *big.Int) string {
	scaled := new(big.Int).Mul(num, big.NewInt(10))
	q := new(big.Int).Quo(scaled, den)
	whole := new(big.Int).Quo(q, big.NewInt(10))
	frac := new(big.Int).Mod(q, big.NewInt(10))
	if frac.Sign() == 0 {
		return whole.String()
	}
	return whole.String() + "." + frac.String()
}

// Top10Concentration sums the ownership% of the first 10 entries (the
// snapshot is already sorted descending by balance).
func Top10Concentration(snap *captable.Snapshot) float64 {
	n := len(snap.Entries)
	if n > 10 {
		n = 10
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += snap.Entries[i].OwnershipPercentage
	}
	return sum
}

// HHI computes the Herfindahl-Hirschman Index, Σ share_i² with shares in [0,1].
func HHI(snap *captable.Snapshot) float64 {
	sum := 0.0
	for _, e := range snap.Entries {
		share := e.OwnershipPercentage / 100
		sum += share * share
	}
	return sum
}

// Gini computes the Gini coefficient via the standard sorted-ascending
// formula (spec §4.6). Returns 0 when n == 0 or Σx_i == 0.
func Gini(snap *captable.Snapshot) float64 {
	vals := sortedRawBalances(snap)
	n := len(vals)
	if n == 0 {
		return 0
	}
	sumX := new(big.Float)
	weighted := new(big.Float)
	for i, x := range vals {
		xf := new(big.Float).SetInt(x)
		sumX.Add(sumX, xf)
		weighted.Add(weighted, new(big.Float).Mul(big.NewFloat(float64(i+1)), xf))
	}
	if sumX.Sign() == 0 {
		return 0
	}
	nf := big.NewFloat(float64(n))
	term1 := new(big.Float).Quo(new(big.Float).Mul(big.NewFloat(2), weighted), new(big.Float).Mul(nf, sumX))
	term2 := (float64(n) + 1) / float64(n)
	g, _ := term1.Float64()
	return g - term2
}

// DecentralizationScore computes clip(0,100, 100*(1-HHI)*(1-Gini)*min(1,n/100))
// exactly as specified in §4.6 — the source's formula is reproduced as-is
// (see DESIGN.md for the open question on its intentional penalty for n<100).
func DecentralizationScore(snap *captable.Snapshot, hhi, gini float64) float64 {
	n := float64(len(snap.Entries))
	score := 100 * (1 - hhi) * (1 - gini) * math.Min(1, n/100)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ConcentrationCategory classifies hhi per spec §4.6.
func ConcentrationCategory(hhi float64) string {
	switch {
	case hhi < 0.15:
		return "low"
	case hhi < 0.25:
		return "moderate"
	default:
		return "high"
	}
}

// Compute bundles every derived metric for snap into an Overview.
func Compute(snap *captable.Snapshot) Overview {
	hhi := HHI(snap)
	gini := Gini(snap)
	return Overview{
		Buckets:               Distribution(snap),
		MedianBalance:         Median(snap),
		MeanBalance:           Mean(snap),
		Top10Concentration:    Top10Concentration(snap),
		HHI:                   hhi,
		Gini:                  gini,
		DecentralizationScore: DecentralizationScore(snap, hhi, gini),
		ConcentrationCategory: ConcentrationCategory(hhi),
	}
}
