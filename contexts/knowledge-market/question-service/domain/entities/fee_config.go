package entities

import "strings"

// MaxBps is the fixed-point denominator for fee fractions (10000 = 100%).
const MaxBps int64 = 10000

// FeeConfig holds the fee fractions applied to every answer submission.
// It is owned by a single question instance and mutated only through the
// owner-restricted setters on the question; submissions always read the
// current values, never a snapshot taken at question creation.
type FeeConfig struct {
	ProtocolFeeBps int64
	CreatorFeeBps  int64
	ReferralFeeBps int64
	TreasuryID     string
}

// Split is the exact decomposition of one submission cost.
type Split struct {
	ProtocolCut int64
	CreatorCut  int64
	ReferralCut int64
	RewardCut   int64
}

// Total returns the sum of all cuts. It equals the submission cost by
// construction whenever SplitSubmissionCost succeeds.
func (s Split) Total() int64 {
	return s.ProtocolCut + s.CreatorCut + s.ReferralCut + s.RewardCut
}

// ValidBps reports whether a single fee fraction is inside [0, MaxBps].
func ValidBps(v int64) bool {
	return v >= 0 && v <= MaxBps
}

// Validate checks field-level bounds. The sum of the three fractions is
// deliberately not bounded here; configurations summing above 100% are
// rejected at submission time instead (see SplitSubmissionCost).
func (f FeeConfig) Validate() bool {
	return ValidBps(f.ProtocolFeeBps) &&
		ValidBps(f.CreatorFeeBps) &&
		ValidBps(f.ReferralFeeBps) &&
		strings.TrimSpace(f.TreasuryID) != ""
}

// SplitSubmissionCost decomposes cost into protocol, creator, optional
// referral, and reward cuts using floor division. Without a referrer the
// referral share folds into the reward cut rather than being dropped.
// Returns ok=false when the applied cuts would exceed the cost, which is the
// defined failure mode for fee configurations summing above 100%.
func (f FeeConfig) SplitSubmissionCost(cost int64, hasReferrer bool) (Split, bool) {
	if cost < 0 {
		return Split{}, false
	}
	split := Split{
		ProtocolCut: cost * f.ProtocolFeeBps / MaxBps,
		CreatorCut:  cost * f.CreatorFeeBps / MaxBps,
	}
	if hasReferrer {
		split.ReferralCut = cost * f.ReferralFeeBps / MaxBps
	}
	taken := split.ProtocolCut + split.CreatorCut + split.ReferralCut
	if taken > cost {
		return Split{}, false
	}
	split.RewardCut = cost - taken
	return split, true
}
