package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestListingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		title, company, source string
		expect                 map[string]string
	}{
		{
			name:  "complete listing",
			title: "Customer Success Manager", company: "TestCorp", source: "remoteok",
			expect: map[string]string{FieldTitle: "Customer Success Manager", FieldCompany: "TestCorp", FieldSource: "remoteok"},
		},
		{
			name:  "unknown company is omitted",
			title: " Solutions Engineer ", company: "", source: "feed",
			expect: map[string]string{FieldTitle: "Solutions Engineer", FieldSource: "feed"},
		},
		{
			name:  "whitespace counts as empty",
			title: "Account Manager", company: "   ", source: "\t",
			expect: map[string]string{FieldTitle: "Account Manager"},
		},
		{
			name:   "nothing known",
			expect: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fields := ListingFields(tt.title, tt.company, tt.source)
			if len(fields) != len(tt.expect) {
				t.Fatalf("expected %d fields, got %d: %+v", len(tt.expect), len(fields), fields)
			}
			for _, f := range fields {
				if want, ok := tt.expect[f.Key]; !ok || f.String != want {
					t.Fatalf("unexpected field %s=%q", f.Key, f.String)
				}
			}
		})
	}
}

func TestListingFieldsInEntries(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	log := WithCommonFields(zap.New(core), "gemini", "gemini-2.5-flash")

	log.Debug("listing rejected", append(ListingFields("Junior CSM", "", "board"), zap.String("reason", "seniority"))...)

	entries := observed.FilterMessage("listing rejected").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldTitle] != "Junior CSM" || ctx[FieldSource] != "board" || ctx["reason"] != "seniority" {
		t.Fatalf("unexpected context: %v", ctx)
	}
	if _, ok := ctx[FieldCompany]; ok {
		t.Fatalf("empty company must not be logged: %v", ctx)
	}
	if ctx[FieldProvider] != "gemini" || ctx[FieldModel] != "gemini-2.5-flash" {
		t.Fatalf("expected provider fields to be attached: %v", ctx)
	}
}

func TestWithFieldsFallsBackToNop(t *testing.T) {
	log := WithCommonFields(nil, "", "")
	if log == nil {
		t.Fatalf("expected a usable logger")
	}
	log.Info("scoring without a configured logger")

	if fields := CommonFields("", "  "); len(fields) != 0 {
		t.Fatalf("expected no provider fields, got %+v", fields)
	}
}
