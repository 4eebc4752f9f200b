package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordCounter struct{ fail bool }

func (w wordCounter) CountTokens(text string) (int, error) {
	if w.fail {
		return 0, errors.New("tokenizer unavailable")
	}
	return len(strings.Fields(text)), nil
}

func TestDescribeWithoutCounter(t *testing.T) {
	records, err := Format(RecordsFromTexts([]string{"ab", "abcd", "abcdef"}), "!")
	require.NoError(t, err)

	st, err := Describe(records, nil, 2048)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Records)
	assert.InDelta(t, 5.0, st.Chars.Mean, 1e-9)
	assert.Equal(t, 7.0, st.Chars.Max)
	assert.Equal(t, 5.0, st.Chars.P50)
	assert.Equal(t, 1.0, st.Words.Max)
	assert.Nil(t, st.Tokens)
	assert.Zero(t, st.OverMaxSeqLen)
	assert.Equal(t, 2048, st.MaxSeqLen)
}

func TestDescribeCountsOverlongRecords(t *testing.T) {
	records, err := Format(RecordsFromTexts([]string{
		"one",
		"one two three",
		"one two three four five",
	}), "")
	require.NoError(t, err)

	st, err := Describe(records, wordCounter{}, 3)
	require.NoError(t, err)

	require.NotNil(t, st.Tokens)
	assert.Equal(t, 5.0, st.Tokens.Max)
	assert.InDelta(t, 3.0, st.Tokens.Mean, 1e-9)
	assert.Equal(t, 1, st.OverMaxSeqLen)
}

func TestDescribeEmpty(t *testing.T) {
	st, err := Describe(nil, wordCounter{}, 10)
	require.NoError(t, err)
	assert.Zero(t, st.Records)
	assert.Nil(t, st.Tokens)
}

func TestDescribeCounterError(t *testing.T) {
	records, err := Format(RecordsFromTexts([]string{"x"}), "")
	require.NoError(t, err)

	_, err = Describe(records, wordCounter{fail: true}, 10)
	assert.ErrorContains(t, err, "tokenizer unavailable")
}
