package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chainequity/internal/captable"
)

func TestHHIEquallySplitApproachesMinimum(t *testing.T) {
	snap := &captable.Snapshot{Entries: []captable.Entry{
		{OwnershipPercentage: 25}, {OwnershipPercentage: 25}, {OwnershipPercentage: 25}, {OwnershipPercentage: 25},
	}}
	hhi := HHI(snap)
	require.InDelta(t, 0.25, hhi, 0.0001)
}

func TestHHISingleHolderIsMaximal(t *testing.T) {
	snap := &captable.Snapshot{Entries: []captable.Entry{{OwnershipPercentage: 100}}}
	require.InDelta(t, 1.0, HHI(snap), 0.0001)
}

func TestGiniZeroWhenEqual(t *testing.T) {
	snap := &captable.Snapshot{Entries: []captable.Entry{
		{RawBalance: "100"}, {RawBalance: "100"}, {RawBalance: "100"},
	}}
	require.InDelta(t, 0, Gini(snap), 0.0001)
}

func TestGiniMaximalForExtremeSkew(t *testing.T) {
	snap := &captable.Snapshot{Entries: []captable.Entry{
		{RawBalance: "0"}, {RawBalance: "0"}, {RawBalance: "1000"},
	}}
	g := Gini(snap)
	require.Greater(t, g, 0.5)
}

func TestMedianOddAndEvenCounts(t *testing.T) {
	odd := &captable.Snapshot{Entries: []captable.Entry{{RawBalance: "10"}, {RawBalance: "30"}, {RawBalance: "20"}}}
	require.Equal(t, "20", Median(odd))

	even := &captable.Snapshot{Entries: []captable.Entry{{RawBalance: "10"}, {RawBalance: "20"}}}
	require.Equal(t, "15", Median(even))
}

func TestDistributionBucketsAssignHighestMatchingBound(t *testing.T) {
	snap := &captable.Snapshot{Entries: []captable.Entry{
		{OwnershipPercentage: 15}, // ≥10%
		{OwnershipPercentage: 5},  // 1%-10%
		{OwnershipPercentage: 0},  // 0%-0.01%
	}}
	buckets := Distribution(snap)
	require.Equal(t, "≥10%", buckets[0].Label)
	require.Equal(t, 1, buckets[0].HolderCount)
	require.Equal(t, "1%–10%", buckets[1].Label)
	require.Equal(t, 1, buckets[1].HolderCount)
	require.Equal(t, 1, buckets[4].HolderCount)
}

func TestDecentralizationScoreClippedToRange(t *testing.T) {
	snap := &captable.Snapshot{Entries: make([]captable.Entry, 150)}
	for i := range snap.Entries {
		snap.Entries[i] = captable.Entry{OwnershipPercentage: 100.0 / 150}
	}
	score := DecentralizationScore(snap, HHI(snap), Gini(snap))
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 100.0)
}

func TestConcentrationCategoryThresholds(t *testing.T) {
	require.Equal(t, "low", ConcentrationCategory(0.10))
	require.Equal(t, "moderate", ConcentrationCategory(0.20))
	require.Equal(t, "high", ConcentrationCategory(0.30))
}
