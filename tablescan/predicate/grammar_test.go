package predicate

import (
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
	}{
		{
			name:       "single comparison",
			expression: "heart_rate < 70",
			want:       "(heart_rate < 70)",
		}, {
			name:       "literal on the left is normalised",
			expression: "60 < heart_rate",
			want:       "(heart_rate > 60)",
		}, {
			name:       "conjunctive range",
			expression: "(60 < heart_rate) & (heart_rate < 70)",
			want:       "((heart_rate > 60) & (heart_rate < 70))",
		}, {
			name:       "two ranges",
			expression: "((60 < heart_rate) & (heart_rate < 70)) & ((40 < hematocrit) & (hematocrit < 60))",
			want:       "(((heart_rate > 60) & (heart_rate < 70)) & ((hematocrit > 40) & (hematocrit < 60)))",
		}, {
			name:       "flat conjunction",
			expression: "(60<heart_rate)&(heart_rate<70)&(40<hematocrit)&(hematocrit<60)",
			want:       "((heart_rate > 60) & (heart_rate < 70) & (hematocrit > 40) & (hematocrit < 60))",
		}, {
			name:       "or binds looser than and",
			expression: "(a >= 1) & (b <= 2) | (c == -3.5)",
			want:       "(((a >= 1) & (b <= 2)) | (c == -3.5))",
		}, {
			name:       "not equal and exponent",
			expression: "(a != 1e3) | (b > .5)",
			want:       "((a != 1000) | (b > 0.5))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := Parse(tt.expression)
			require.NoError(t, err, errorsx.ErrWithStack(err))
			assert.Equal(t, tt.want, filter.String())

			// the canonical form parses back to the same tree
			reparsed, err := Parse(filter.String())
			require.NoError(t, err, errorsx.ErrWithStack(err))
			assert.Equal(t, filter.String(), reparsed.String())
		})
	}
}

func TestParse_invalid(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"empty", "   "},
		{"chained comparison", "60 < heart_rate < 70"},
		{"chained comparisons in conjunction", "(60 < heart_rate < 70) & (40 < hematocrit < 60)"},
		{"bare comparisons joined by &", "60 < heart_rate & heart_rate < 70"},
		{"bare comparisons joined by |", "heart_rate < 60 | heart_rate > 70"},
		{"and keyword", "(60 < heart_rate) and (heart_rate < 70)"},
		{"or keyword", "(60 < heart_rate) or (heart_rate < 70)"},
		{"single equals", "heart_rate = 60"},
		{"column compared with column", "heart_rate < hematocrit"},
		{"number compared with number", "1 < 2"},
		{"unbalanced parens", "((heart_rate < 70)"},
		{"missing operand", "heart_rate <"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expression)
			require.Error(t, err)
			assert.True(t, tablescan.IsErr(err, tablescan.ErrInvalidPredicate), err.Error())
		})
	}
}

func TestParse_chainedComparisonSuggestion(t *testing.T) {
	_, err := Parse("60 < heart_rate < 70")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(60 < heart_rate) & (heart_rate < 70)")
}
