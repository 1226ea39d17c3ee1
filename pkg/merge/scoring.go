package merge

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// lineRange is a half-open [start, end) range of base-file line indices
// touched by a change, as reported by difflib's opcodes.
type lineRange struct {
	start, end int
}

// changedRanges returns the base-line ranges that differ between base and
// modified, using difflib's SequenceMatcher over lines.
func changedRanges(base, modified string) []lineRange {
	baseLines := difflib.SplitLines(base)
	modLines := difflib.SplitLines(modified)
	matcher := difflib.NewMatcher(baseLines, modLines)

	var ranges []lineRange
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		ranges = append(ranges, lineRange{start: op.I1, end: op.I2})
	}
	return ranges
}

func overlaps(a, b lineRange) bool {
	return a.start < b.end && b.start < a.end
}

func totalLines(ranges []lineRange) int {
	n := 0
	for _, r := range ranges {
		if r.end > r.start {
			n += r.end - r.start
		} else {
			n++ // pure insertion: count as one touched point
		}
	}
	return n
}

// ConflictScore estimates how much a candidate changeset's edits overlap
// with edits already folded into target, relative to base, for the files
// the candidate touches. Returned value is in [0,1]: the fraction of the
// candidate's changed lines that fall within a range target also changed
// in the same file. A candidate that touches files target never touched
// scores 0.
func ConflictScore(base, target map[string]string, candidate BranchChangeset) float64 {
	var touchedLines, overlappingLines int

	for _, fc := range candidate.Files {
		baseContent := normalizeLineEndings(base[fc.Path])
		candidateRanges := changedRanges(baseContent, normalizeLineEndings(fc.Content))
		touchedLines += totalLines(candidateRanges)

		targetContent, touchedByTarget := target[fc.Path]
		if !touchedByTarget {
			continue
		}
		targetRanges := changedRanges(baseContent, normalizeLineEndings(targetContent))

		for _, cr := range candidateRanges {
			for _, tr := range targetRanges {
				if overlaps(cr, tr) {
					overlappingLines += minInt(cr.end, tr.end) - maxInt(cr.start, tr.start)
				}
			}
		}
	}

	if touchedLines == 0 {
		return 0
	}
	score := float64(overlappingLines) / float64(touchedLines)
	if score > 1 {
		score = 1
	}
	return score
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// applyClean merges candidate into target when none of its files conflict
// with what target already holds, returning the updated target map.
func applyClean(target map[string]string, candidate BranchChangeset) map[string]string {
	out := make(map[string]string, len(target))
	for k, v := range target {
		out[k] = v
	}
	for _, fc := range candidate.Files {
		out[fc.Path] = fc.Content
	}
	return out
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
