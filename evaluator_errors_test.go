package settings

import (
	"errors"
	"strings"
	"testing"
)

func TestAsExprErrorWrapsForeignErrors(t *testing.T) {
	base := errors.New("boom")
	exprErr := asExprError("font_size", "custom", "lang == nil", base)

	if exprErr.Engine != "custom" || exprErr.Key != "font_size" || exprErr.Expr != "lang == nil" {
		t.Fatalf("missing metadata: %+v", exprErr)
	}
	if exprErr.Phase != PhaseRun {
		t.Fatalf("foreign errors should count as run failures, got %s", exprErr.Phase)
	}
	if !errors.Is(exprErr, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	want := `settings: default "font_size": custom run "lang == nil": boom`
	if exprErr.Error() != want {
		t.Fatalf("unexpected message %q", exprErr.Error())
	}
}

func TestAsExprErrorFillsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &ExprError{Engine: "cel", Phase: PhaseCompile, Err: base}

	got := asExprError("theme", "expr", "rule", existing)
	if got != existing {
		t.Fatalf("expected the existing error to be reused")
	}
	if existing.Engine != "cel" || existing.Phase != PhaseCompile {
		t.Fatalf("engine and phase should not be overwritten: %+v", existing)
	}
	if existing.Expr != "rule" || existing.Key != "theme" {
		t.Fatalf("expression and key should be filled: %+v", existing)
	}
	if asExprError("theme", "expr", "rule", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestFieldErrorStripsPrefixes(t *testing.T) {
	cause := errors.New("invalid character 'o' in literal null (expecting 'u')")
	fe := newFieldError("theme", &DecodeError{Key: "theme", Text: "not-json", Err: cause})
	if fe.Message != cause.Error() {
		t.Fatalf("expected raw codec message, got %q", fe.Message)
	}
	var decodeErr *DecodeError
	if !errors.As(fe, &decodeErr) || decodeErr.Key != "theme" {
		t.Fatalf("expected FieldError to unwrap to DecodeError, got %v", fe.Err)
	}
	if fe.Error() != "theme: "+cause.Error() {
		t.Fatalf("unexpected error string %q", fe.Error())
	}

	exprFE := newFieldError("banner", &ExprError{Key: "banner", Engine: "expr", Phase: PhaseRun, Err: cause})
	if exprFE.Message != cause.Error() || strings.HasPrefix(exprFE.Message, "settings:") {
		t.Fatalf("expected raw evaluator message, got %q", exprFE.Message)
	}
}
