package grading

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
)

// TestProperty_RequiredKeywordScoreIsMonotonic checks that a query
// containing every word of a required keyword never scores lower on
// that check than a query containing none of them.
func TestProperty_RequiredKeywordScoreIsMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("presence of all required keywords beats absence of all of them", prop.ForAll(
		func(keyword string) bool {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				return true
			}
			s := New()

			withKeyword := s.Grade(Request{
				StudentResult:    executor.Result{Success: true},
				StudentQuery:     "SELECT * FROM t WHERE " + keyword + " = 1",
				RequiredKeywords: []string{keyword},
				MaxScore:         100,
			})
			without := s.Grade(Request{
				StudentResult:    executor.Result{Success: true},
				StudentQuery:     "SELECT * FROM t",
				RequiredKeywords: []string{keyword},
				MaxScore:         100,
			})
			return withKeyword.Score >= without.Score
		},
		gen.RegexMatch(`[A-Za-z]{3,12}`),
	))

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties.TestingRun(t, params)
}

// TestProperty_FailedExecutionAlwaysScoresZero checks that no
// combination of grading criteria can lift a failed execution's score
// above zero.
func TestProperty_FailedExecutionAlwaysScoresZero(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a failed execution always scores zero", prop.ForAll(
		func(maxScore uint16) bool {
			s := New()
			result := s.Grade(Request{
				StudentResult:     executor.Result{Success: false, ErrorMessage: "boom"},
				RequiredKeywords:  []string{"WHERE"},
				ForbiddenKeywords: []string{"DELETE"},
				MaxScore:          int(maxScore),
			})
			return result.Score == 0 && !result.IsCorrect
		},
		gen.UInt16(),
	))

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties.TestingRun(t, params)
}
