package domain

import (
	"fmt"
	"strings"
)

// QualityTier is the ordered confidence classification of a report's numbers.
type QualityTier string

const (
	TierPreliminary QualityTier = "preliminary"
	TierBenchmark   QualityTier = "benchmark"
	TierTradeBacked QualityTier = "trade_backed"
	TierVerified    QualityTier = "verified"
)

// tierRank maps tiers to their ordering: preliminary < benchmark < trade_backed < verified.
var tierRank = map[QualityTier]int{
	TierPreliminary: 0,
	TierBenchmark:   1,
	TierTradeBacked: 2,
	TierVerified:    3,
}

// Rank returns the tier's position in the ordering, with unknown tiers ranked
// below preliminary.
func (t QualityTier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// Signals are report-level evidence signals that feed tier computation but are
// not per-fact evidence records.
type Signals struct {
	HasImportEvidence bool `json:"has_import_evidence"`
	HasSimilarRecords bool `json:"has_similar_records"`
}

// TierResult is the output of tier computation: the tier, a human-readable
// reason, and the inputs still missing (reported even for verified, for
// transparency).
type TierResult struct {
	Tier          QualityTier `json:"tier"`
	Reason        string      `json:"reason"`
	MissingInputs []string    `json:"missing_inputs,omitempty"`
}

// Missing-input names reported by ComputeTier.
const (
	MissingLabel    = "label"
	MissingWeight   = "weight"
	MissingCasePack = "case_pack"
)

// ComputeTier derives the quality tier from evidence, signals, and verification
// state. Pure: it performs no I/O and is recomputed on every read.
//
// Priority order:
//  1. verification.quoted short-circuits to verified regardless of gaps,
//  2. import evidence with all required inputs present yields trade_backed,
//  3. category-level signals with incomplete inputs yield benchmark,
//  4. otherwise preliminary.
func ComputeTier(ev EvidenceSet, sig Signals, ver Verification) TierResult {
	var missing []string
	if !ev.Label.Satisfied() {
		missing = append(missing, MissingLabel)
	}
	if !ev.Weight.Satisfied() {
		missing = append(missing, MissingWeight)
	}
	if !ev.CasePackKnown {
		missing = append(missing, MissingCasePack)
	}

	if ver.Quoted {
		return TierResult{
			Tier:          TierVerified,
			Reason:        "supplier quote confirmed in writing",
			MissingInputs: missing,
		}
	}

	if sig.HasImportEvidence && len(missing) == 0 {
		return TierResult{
			Tier:   TierTradeBacked,
			Reason: "import evidence with all required inputs present",
		}
	}

	if sig.HasImportEvidence || sig.HasSimilarRecords {
		reason := "category signals present"
		if len(missing) > 0 {
			reason = fmt.Sprintf("category signals present, missing: %s", strings.Join(missing, ", "))
		}
		return TierResult{
			Tier:          TierBenchmark,
			Reason:        reason,
			MissingInputs: missing,
		}
	}

	return TierResult{
		Tier:          TierPreliminary,
		Reason:        "no import evidence or comparable records yet",
		MissingInputs: missing,
	}
}
