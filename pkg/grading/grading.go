// Package grading scores a student's executed query against an
// exercise's grading criteria: forbidden/required keywords and result
// comparison, each weighted, per spec.md's grading model.
package grading

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
)

// Check is one named grading criterion and whether it passed.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// Feedback is the structured explanation returned alongside a score.
type Feedback struct {
	Checks []Check  `json:"checks"`
	Hints  []string `json:"hints"`
	Error  string   `json:"error,omitempty"`
}

// Result is the outcome of grading one submission.
type Result struct {
	Score     float64  `json:"score"`
	MaxScore  int      `json:"max_score"`
	IsCorrect bool     `json:"is_correct"`
	Feedback  Feedback `json:"feedback"`
}

// Percentage reports the score as a 0-100 percentage of MaxScore.
func (r Result) Percentage() float64 {
	if r.MaxScore == 0 {
		return 0
	}
	return r.Score / float64(r.MaxScore) * 100
}

// Request bundles everything needed to grade one submission.
type Request struct {
	StudentResult     executor.Result
	ExpectedResult    *executor.Result
	ExpectedQuery     string
	RequiredKeywords  []string
	ForbiddenKeywords []string
	OrderMatters      bool
	PartialMatch      bool
	MaxScore          int
	StudentQuery      string
}

// Service grades submissions. It holds no state and carries no
// package-level instance: callers construct one with New and share it
// explicitly, matching the rest of this module's anti-singleton design.
type Service struct{}

// New builds a grading Service.
func New() *Service {
	return &Service{}
}

// Grade scores req.StudentResult against req's criteria using the
// weighted pipeline: a failed execution is a hard gate to zero;
// otherwise forbidden keywords (weight 20), required keywords (weight
// 20), and result match (weight 60) combine proportionally to whichever
// of those checks actually apply.
func (s *Service) Grade(req Request) Result {
	if !req.StudentResult.Success {
		errMsg := req.StudentResult.ErrorMessage
		if errMsg == "" {
			errMsg = "query execution failed"
		}
		return Result{
			Score:     0,
			MaxScore:  req.MaxScore,
			IsCorrect: false,
			Feedback: Feedback{
				Checks: []Check{{Name: "Execution", Passed: false}},
				Hints:  []string{"Your query has an error. Check the error message."},
				Error:  errMsg,
			},
		}
	}

	var scores []float64
	var weights []float64
	feedback := Feedback{}

	if len(req.ForbiddenKeywords) > 0 {
		check := checkForbiddenKeywords(req.StudentQuery, req.ForbiddenKeywords)
		scores = append(scores, check.score)
		weights = append(weights, 20)
		feedback.Checks = append(feedback.Checks, Check{Name: "Forbidden keywords", Passed: check.passed})
		if !check.passed {
			feedback.Hints = append(feedback.Hints, "Avoid using: "+strings.Join(check.found, ", "))
		}
	}

	if len(req.RequiredKeywords) > 0 {
		check := checkRequiredKeywords(req.StudentQuery, req.RequiredKeywords)
		scores = append(scores, check.score)
		weights = append(weights, 20)
		feedback.Checks = append(feedback.Checks, Check{Name: "Required keywords", Passed: check.passed})
		if !check.passed {
			feedback.Hints = append(feedback.Hints, "Consider using: "+strings.Join(check.missing, ", "))
		}
	}

	if req.ExpectedResult != nil {
		check := checkResultMatch(req.StudentResult, *req.ExpectedResult, req.OrderMatters, req.PartialMatch)
		scores = append(scores, check.score)
		weights = append(weights, 60)
		feedback.Checks = append(feedback.Checks, Check{Name: "Result match", Passed: check.passed, Details: check.details})
		if !check.passed {
			switch {
			case check.columnMismatch:
				feedback.Hints = append(feedback.Hints, "Check your column selection.")
			case check.rowCountMismatch:
				feedback.Hints = append(feedback.Hints, fmt.Sprintf("Expected %d rows, got %d.", check.expectedRows, check.actualRows))
			default:
				feedback.Hints = append(feedback.Hints, "Check your query results.")
			}
		}
	}

	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}

	if totalWeight == 0 {
		return Result{
			Score:     float64(req.MaxScore),
			MaxScore:  req.MaxScore,
			IsCorrect: true,
			Feedback:  feedback,
		}
	}

	weightedSum := 0.0
	for i, score := range scores {
		weightedSum += score * weights[i]
	}
	finalScore := round2(weightedSum / totalWeight * float64(req.MaxScore) / 100)

	isCorrect := true
	for _, c := range feedback.Checks {
		if !c.Passed {
			isCorrect = false
			break
		}
	}

	return Result{
		Score:     finalScore,
		MaxScore:  req.MaxScore,
		IsCorrect: isCorrect,
		Feedback:  feedback,
	}
}

type keywordCheck struct {
	passed  bool
	score   float64
	found   []string
	missing []string
}

func checkForbiddenKeywords(query string, forbidden []string) keywordCheck {
	upper := strings.ToUpper(query)
	var found []string
	for _, kw := range forbidden {
		if keywordPresent(upper, kw) {
			found = append(found, kw)
		}
	}
	if len(found) == 0 {
		return keywordCheck{passed: true, score: 100}
	}
	return keywordCheck{passed: false, score: 0, found: found}
}

func checkRequiredKeywords(query string, required []string) keywordCheck {
	if len(required) == 0 {
		return keywordCheck{passed: true, score: 100}
	}
	upper := strings.ToUpper(query)
	var missing []string
	for _, kw := range required {
		if !keywordPresent(upper, kw) {
			missing = append(missing, kw)
		}
	}
	score := float64(len(required)-len(missing)) / float64(len(required)) * 100
	return keywordCheck{passed: len(missing) == 0, score: score, missing: missing}
}

// keywordPresent matches keyword as a whole word. A \b anchor is placed
// only at an edge where the keyword begins or ends with a word
// character, so keywords such as "*" or "SELECT *" still match.
func keywordPresent(upperQuery, keyword string) bool {
	kw := strings.ToUpper(keyword)
	isWord := func(b byte) bool {
		return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
	}
	pattern := regexp.QuoteMeta(kw)
	if kw == "" || isWord(kw[0]) {
		pattern = `\b` + pattern
	}
	if kw == "" || isWord(kw[len(kw)-1]) {
		pattern += `\b`
	}
	matched, err := regexp.MatchString(pattern, upperQuery)
	return err == nil && matched
}

type resultCheck struct {
	passed           bool
	score            float64
	details          string
	columnMismatch   bool
	rowCountMismatch bool
	expectedRows     int
	actualRows       int
}

func checkResultMatch(student, expected executor.Result, orderMatters, partialMatch bool) resultCheck {
	studentCols := upperAll(student.Columns)
	expectedCols := upperAll(expected.Columns)

	if !sameSet(studentCols, expectedCols) {
		return resultCheck{passed: false, score: 0, columnMismatch: true, details: "Column mismatch"}
	}

	studentRows := student.Rows
	if !equalOrder(studentCols, expectedCols) {
		studentRows = reorderColumns(studentRows, studentCols, expectedCols)
	}

	studentNorm := normalizeRows(studentRows)
	expectedNorm := normalizeRows(expected.Rows)

	if len(studentNorm) != len(expectedNorm) {
		if partialMatch {
			matches := countMatches(studentNorm, expectedNorm, orderMatters)
			denom := len(expectedNorm)
			if denom == 0 {
				denom = 1
			}
			score := float64(matches) / float64(denom) * 100
			return resultCheck{
				passed: false, score: score, rowCountMismatch: true,
				expectedRows: len(expectedNorm), actualRows: len(studentNorm),
			}
		}
		return resultCheck{
			passed: false, score: 0, rowCountMismatch: true,
			expectedRows: len(expectedNorm), actualRows: len(studentNorm),
		}
	}

	matches := countMatches(studentNorm, expectedNorm, orderMatters)
	total := len(expectedNorm)
	if total == 0 {
		total = 1
	}
	score := float64(matches) / float64(total) * 100

	return resultCheck{
		passed:  matches == total,
		score:   score,
		details: fmt.Sprintf("%d/%d rows match", matches, total),
	}
}

func upperAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
		if seen[v] < 0 {
			return false
		}
	}
	return true
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func reorderColumns(rows [][]interface{}, from, to []string) [][]interface{} {
	mapping := make([]int, len(to))
	for i, col := range to {
		for j, src := range from {
			if src == col {
				mapping[i] = j
				break
			}
		}
	}
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		reordered := make([]interface{}, len(mapping))
		for j, idx := range mapping {
			if idx < len(row) {
				reordered[j] = row[idx]
			}
		}
		out[i] = reordered
	}
	return out
}

func normalizeRows(rows [][]interface{}) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		parts := make([]string, len(row))
		for j, v := range row {
			parts[j] = normalizeValue(v)
		}
		out[i] = strings.Join(parts, "\x1f")
	}
	return out
}

func normalizeValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "\x00nil"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float32:
		return fmt.Sprintf("%.6f", round6(float64(val)))
	case float64:
		return fmt.Sprintf("%.6f", round6(val))
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

func countMatches(student, expected []string, orderMatters bool) int {
	if orderMatters {
		matches := 0
		n := len(student)
		if len(expected) < n {
			n = len(expected)
		}
		for i := 0; i < n; i++ {
			if student[i] == expected[i] {
				matches++
			}
		}
		return matches
	}

	expectedCount := make(map[string]int, len(expected))
	for _, v := range expected {
		expectedCount[v]++
	}
	studentCount := make(map[string]int, len(student))
	for _, v := range student {
		studentCount[v]++
	}
	matches := 0
	for v, n := range studentCount {
		if e := expectedCount[v]; e < n {
			matches += e
		} else {
			matches += n
		}
	}
	return matches
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
