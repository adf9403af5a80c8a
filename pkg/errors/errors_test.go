package errors

import (
	"errors"
	"testing"
)

func TestReportError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeSchemaViolation,
			message:    "missing column",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "source error",
			category:   CategorySource,
			code:       CodeConnectionFailed,
			message:    "connection refused",
			cause:      errors.New("dial tcp"),
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReportError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected stack trace to be captured")
			}
		})
	}
}

func TestReportErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestTaxonomyConstructors(t *testing.T) {
	t.Run("MissingSourceError", func(t *testing.T) {
		cause := errors.New("no such file")
		err := MissingSourceError("receitas_previsao", "data/previsao.csv", cause)

		if err.Code != CodeMissingSource {
			t.Errorf("expected missing source code, got %s", err.Code)
		}
		if !err.Recoverable() {
			t.Error("expected missing source to be recoverable")
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
		if err.Context["source"] != "receitas_previsao" {
			t.Errorf("expected source context, got %v", err.Context["source"])
		}
	})

	t.Run("KeyMappingError", func(t *testing.T) {
		err := KeyMappingError("executado", 7, "month", "xyz")

		if err.Code != CodeKeyMappingFailure {
			t.Errorf("expected key mapping code, got %s", err.Code)
		}
		if !err.Recoverable() {
			t.Error("expected key mapping failure to be recoverable")
		}
		if err.Context["line"] != 7 {
			t.Errorf("expected line context 7, got %v", err.Context["line"])
		}
		if err.Context["value"] != "xyz" {
			t.Errorf("expected value context, got %v", err.Context["value"])
		}
	})

	t.Run("CoercionError", func(t *testing.T) {
		err := CoercionError("executado", 3, "abc", nil)

		if err.Code != CodeNumericCoercionFailure {
			t.Errorf("expected coercion code, got %s", err.Code)
		}
		if !err.Recoverable() {
			t.Error("expected coercion failure to be recoverable")
		}
		if err.Cause != nil {
			t.Errorf("expected no cause, got %v", err.Cause)
		}
	})

	t.Run("SchemaError", func(t *testing.T) {
		err := SchemaError("executado", "Valor", []string{"Grupo", "Mes"})

		if err.Code != CodeSchemaViolation {
			t.Errorf("expected schema code, got %s", err.Code)
		}
		if err.Recoverable() {
			t.Error("expected schema violation to be fatal")
		}
		if err.Suggestion != "available columns: Grupo, Mes" {
			t.Errorf("unexpected suggestion %q", err.Suggestion)
		}
		if err.GetExitCode() != 3 {
			t.Errorf("expected exit code 3, got %d", err.GetExitCode())
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeInvalidFormat, "test.csv", 10, nil)

		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["file"] != "test.csv" {
			t.Errorf("expected file context, got %v", err.Context["file"])
		}
		if err.Context["line"] != 10 {
			t.Errorf("expected line context, got %v", err.Context["line"])
		}
	})

	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/test/file.csv", cause)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Context["file_path"] != "/test/file.csv" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
	})
}

func TestErrorSummary(t *testing.T) {
	errs := []*ReportError{
		KeyMappingError("executado", 2, "month", "x"),
		KeyMappingError("executado", 3, "category", ""),
		CoercionError("executado", 4, "abc", nil),
		New(CategoryFile, CodeFileNotFound, "missing"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 4 {
		t.Errorf("expected total 4, got %d", summary.Total)
	}
	if summary.ByCode[CodeKeyMappingFailure] != 2 {
		t.Errorf("expected 2 key mapping errors, got %d", summary.ByCode[CodeKeyMappingFailure])
	}
	if !summary.HasCode(CodeNumericCoercionFailure) {
		t.Error("expected coercion code to be present")
	}
	if summary.HasCategory(CategorySource) {
		t.Error("expected no source errors")
	}
	if summary.GetExitCode() != 3 {
		t.Errorf("expected exit code 3, got %d", summary.GetExitCode())
	}
}

func TestEmptyErrorSummary(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("expected 'no errors', got '%s'", summary.Error())
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", summary.GetExitCode())
	}
}

func TestAsReportError(t *testing.T) {
	reportErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if extracted, ok := AsReportError(reportErr); !ok || extracted != reportErr {
		t.Error("expected AsReportError to extract ReportError")
	}
	if _, ok := AsReportError(genericErr); ok {
		t.Error("expected AsReportError to return false for generic error")
	}
	if !IsReportError(reportErr) || IsReportError(genericErr) {
		t.Error("IsReportError misclassified an error")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	reportErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if WrapIfNeeded(reportErr, CategoryParse, CodeInvalidFormat, "wrapped") != reportErr {
		t.Error("expected WrapIfNeeded to return original ReportError")
	}

	wrapped := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if wrapped.Cause != genericErr {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}

	if WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}
