package grading

import (
	"testing"

	"github.com/sandboxlab/sandbox-core/pkg/executor"
)

func TestGrade_FailedExecutionIsHardZero(t *testing.T) {
	s := New()
	result := s.Grade(Request{
		StudentResult: executor.Result{Success: false, ErrorMessage: "syntax error"},
		MaxScore:      100,
	})
	if result.Score != 0 || result.IsCorrect {
		t.Fatalf("expected zero score on failed execution, got %+v", result)
	}
	if result.Feedback.Error != "syntax error" {
		t.Fatalf("expected error message to be carried through, got %q", result.Feedback.Error)
	}
}

func TestGrade_NoCriteriaIsFullScoreOnSuccess(t *testing.T) {
	s := New()
	result := s.Grade(Request{
		StudentResult: executor.Result{Success: true},
		MaxScore:      100,
	})
	if result.Score != 100 || !result.IsCorrect {
		t.Fatalf("expected full score with no criteria, got %+v", result)
	}
}

func TestGrade_ForbiddenKeywordFound(t *testing.T) {
	s := New()
	result := s.Grade(Request{
		StudentResult:     executor.Result{Success: true},
		StudentQuery:      "SELECT * FROM students",
		ForbiddenKeywords: []string{"SELECT *"},
		MaxScore:          100,
	})
	if result.IsCorrect {
		t.Fatal("expected forbidden keyword to fail the submission")
	}
	if result.Score != 0 {
		t.Fatalf("expected zero score for a forbidden-keyword violation, got %v", result.Score)
	}
}

func TestGrade_ForbiddenKeywordWordBoundary(t *testing.T) {
	s := New()
	result := s.Grade(Request{
		StudentResult:     executor.Result{Success: true},
		StudentQuery:      "SELECT name FROM selections",
		ForbiddenKeywords: []string{"SELECT *"},
		MaxScore:          100,
	})
	if !result.IsCorrect || result.Score != 100 {
		t.Fatalf("expected 'selections' not to trigger a 'SELECT *' match, got %+v", result)
	}
}

func TestGrade_RequiredKeywordsPartialCredit(t *testing.T) {
	s := New()
	result := s.Grade(Request{
		StudentResult:    executor.Result{Success: true},
		StudentQuery:     "SELECT name FROM students WHERE id = 1",
		RequiredKeywords: []string{"JOIN", "WHERE"},
		MaxScore:         100,
	})
	if result.IsCorrect {
		t.Fatal("expected missing required keywords to fail correctness")
	}
	if result.Score != 50 {
		t.Fatalf("expected half credit for one of two required keywords present, got %v", result.Score)
	}
}

func TestGrade_ResultMatchExactUnordered(t *testing.T) {
	s := New()
	expected := executor.Result{
		Success: true,
		Columns: []string{"id", "name"},
		Rows:    [][]interface{}{{int64(1), "Ada"}, {int64(2), "Grace"}},
	}
	student := executor.Result{
		Success: true,
		Columns: []string{"id", "name"},
		Rows:    [][]interface{}{{int64(2), "Grace"}, {int64(1), "Ada"}},
	}
	result := s.Grade(Request{
		StudentResult:  student,
		ExpectedResult: &expected,
		MaxScore:       100,
	})
	if !result.IsCorrect || result.Score != 100 {
		t.Fatalf("expected unordered row match to fully pass, got %+v", result)
	}
}

func TestGrade_ResultMatchUnorderedDuplicateRowsUseMultisetIntersection(t *testing.T) {
	s := New()
	expected := executor.Result{
		Success: true,
		Columns: []string{"team"},
		Rows:    [][]interface{}{{"a"}, {"a"}, {"b"}},
	}
	student := executor.Result{
		Success: true,
		Columns: []string{"team"},
		Rows:    [][]interface{}{{"b"}, {"a"}, {"a"}},
	}
	result := s.Grade(Request{
		StudentResult:  student,
		ExpectedResult: &expected,
		MaxScore:       100,
	})
	if !result.IsCorrect || result.Score != 100 {
		t.Fatalf("expected identical multiset of rows to fully pass, got %+v", result)
	}
}

func TestGrade_ResultMatchFailsWhenOrderMattersAndDiffers(t *testing.T) {
	s := New()
	expected := executor.Result{
		Success: true,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}, {int64(2)}},
	}
	student := executor.Result{
		Success: true,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(2)}, {int64(1)}},
	}
	result := s.Grade(Request{
		StudentResult:  student,
		ExpectedResult: &expected,
		OrderMatters:   true,
		MaxScore:       100,
	})
	if result.IsCorrect {
		t.Fatal("expected order-sensitive mismatch to fail")
	}
}

func TestGrade_ResultMatchColumnMismatch(t *testing.T) {
	s := New()
	expected := executor.Result{Success: true, Columns: []string{"id", "name"}}
	student := executor.Result{Success: true, Columns: []string{"id", "email"}}
	result := s.Grade(Request{
		StudentResult:  student,
		ExpectedResult: &expected,
		MaxScore:       100,
	})
	if result.IsCorrect || result.Score != 0 {
		t.Fatalf("expected column mismatch to score zero, got %+v", result)
	}
	if result.Feedback.Checks[0].Name != "Result match" {
		t.Fatalf("unexpected check name: %+v", result.Feedback.Checks)
	}
}

func TestGrade_ResultMatchPartialCreditOnRowCountMismatch(t *testing.T) {
	s := New()
	expected := executor.Result{
		Success: true,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}, {int64(2)}, {int64(3)}},
	}
	student := executor.Result{
		Success: true,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}, {int64(2)}},
	}
	result := s.Grade(Request{
		StudentResult:  student,
		ExpectedResult: &expected,
		PartialMatch:   true,
		MaxScore:       100,
	})
	if result.IsCorrect {
		t.Fatal("expected row count mismatch to still fail correctness")
	}
	if result.Score <= 0 || result.Score >= 100 {
		t.Fatalf("expected partial credit strictly between 0 and 100, got %v", result.Score)
	}
}

func TestGrade_WeightedCombination(t *testing.T) {
	s := New()
	expected := executor.Result{
		Success: true,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}},
	}
	student := executor.Result{
		Success: true,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}},
	}
	result := s.Grade(Request{
		StudentResult:     student,
		StudentQuery:      "SELECT id FROM t WHERE id = 1",
		RequiredKeywords:  []string{"WHERE"},
		ForbiddenKeywords: []string{"DELETE"},
		ExpectedResult:    &expected,
		MaxScore:          100,
	})
	if !result.IsCorrect || result.Score != 100 {
		t.Fatalf("expected all three weighted checks to pass for full score, got %+v", result)
	}
}

func TestResult_Percentage(t *testing.T) {
	r := Result{Score: 75, MaxScore: 100}
	if r.Percentage() != 75 {
		t.Fatalf("expected 75%%, got %v", r.Percentage())
	}
	zero := Result{Score: 0, MaxScore: 0}
	if zero.Percentage() != 0 {
		t.Fatalf("expected zero max score to report 0%%, not divide by zero")
	}
}
