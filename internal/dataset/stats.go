package dataset

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// LengthSummary describes a length distribution.
type LengthSummary struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	Max  float64 `json:"max"`
}

// Stats summarizes the formatted text a trainer will consume.
type Stats struct {
	Records int            `json:"records"`
	Chars   LengthSummary  `json:"chars"`
	Words   LengthSummary  `json:"words"`
	Tokens  *LengthSummary `json:"tokens,omitempty"`
	// OverMaxSeqLen counts records longer than MaxSeqLen tokens. Only set
	// when a TokenCounter was supplied.
	OverMaxSeqLen int `json:"over_max_seq_len"`
	MaxSeqLen     int `json:"max_seq_len"`
}

// Describe computes length statistics over the TextCustom field. counter may
// be nil, in which case token statistics are skipped.
func Describe(records []FormattedRecord, counter TokenCounter, maxSeqLen int) (Stats, error) {
	st := Stats{Records: len(records), MaxSeqLen: maxSeqLen}
	if len(records) == 0 {
		return st, nil
	}

	chars := make([]float64, len(records))
	words := make([]float64, len(records))
	var tokens []float64
	if counter != nil {
		tokens = make([]float64, len(records))
	}

	for i, r := range records {
		chars[i] = float64(utf8.RuneCountInString(r.TextCustom))
		words[i] = float64(len(strings.Fields(r.TextCustom)))
		if counter == nil {
			continue
		}
		n, err := counter.CountTokens(r.TextCustom)
		if err != nil {
			return Stats{}, fmt.Errorf("count tokens for record %d: %w", i, err)
		}
		tokens[i] = float64(n)
		if maxSeqLen > 0 && n > maxSeqLen {
			st.OverMaxSeqLen++
		}
	}

	st.Chars = summarize(chars)
	st.Words = summarize(words)
	if tokens != nil {
		s := summarize(tokens)
		st.Tokens = &s
	}
	return st, nil
}

func summarize(x []float64) LengthSummary {
	sort.Float64s(x)
	return LengthSummary{
		Mean: stat.Mean(x, nil),
		P50:  stat.Quantile(0.5, stat.Empirical, x, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, x, nil),
		Max:  floats.Max(x),
	}
}
