// Package content holds cheap payload heuristics that run before any
// expensive downstream processing.
package content

import "strings"

// pdfMarkers are the structural tokens of a PDF body. All four must be
// present for the co-occurrence rule to fire; any one alone is too weak a
// signal (e.g. "stream" appears in ordinary prose).
var pdfMarkers = [...]string{"obj", "endobj", "stream", "endstream"}

const (
	// ratioLengthGate skips the noise-ratio rule for short bodies, where
	// a handful of odd bytes would dominate the ratio.
	ratioLengthGate = 100

	// ratioThreshold is the fraction of control/extended bytes above
	// which a body is considered binary.
	ratioThreshold = 0.1
)

// IsBinary reports whether a retrieved body looks like a PDF or other
// binary payload unsuitable for text extraction. False negatives are
// acceptable (extraction downstream just produces garbage); false
// positives should stay rare.
//
// Rules, first match wins:
//  1. trimmed body starts with "%PDF-"
//  2. trimmed body contains obj, endobj, stream and endstream
//  3. body longer than 100 bytes with >10% control/extended bytes
func IsBinary(body string) bool {
	if body == "" {
		return false
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "%PDF-") {
		return true
	}

	all := true
	for _, m := range pdfMarkers {
		if !strings.Contains(trimmed, m) {
			all = false
			break
		}
	}
	if all {
		return true
	}

	if len(body) > ratioLengthGate {
		if noiseRatio(body) > ratioThreshold {
			return true
		}
	}

	return false
}

// noiseRatio computes the fraction of bytes in the control ranges
// 0x00-0x08, 0x0B, 0x0C, 0x0E-0x1F and 0x7F-0x9F. The scan is byte-wise
// on purpose: bodies are decoded permissively and binary noise shows up
// as raw high bytes, which a rune-wise scan would fold into U+FFFD.
func noiseRatio(body string) float64 {
	var n int
	for i := 0; i < len(body); i++ {
		b := body[i]
		switch {
		case b <= 0x08:
			n++
		case b == 0x0B || b == 0x0C:
			n++
		case b >= 0x0E && b <= 0x1F:
			n++
		case b >= 0x7F && b <= 0x9F:
			n++
		}
	}
	return float64(n) / float64(len(body))
}
