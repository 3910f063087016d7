package preference

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePrefer(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    Return
	}{
		{"no header", nil, ReturnDefault},
		{"minimal", []string{"return=minimal"}, ReturnMinimal},
		{"representation", []string{"return=representation"}, ReturnRepresentation},
		{"case insensitive", []string{"RETURN=Minimal"}, ReturnMinimal},
		{"quoted", []string{`return="minimal"`}, ReturnMinimal},
		{"with parameters", []string{"return=minimal; charset=utf-8"}, ReturnMinimal},
		{"among others", []string{"respond-async, wait=10, return=representation"}, ReturnRepresentation},
		{"last wins", []string{"return=minimal", "return=representation"}, ReturnRepresentation},
		{"unknown value", []string{"return=everything"}, ReturnDefault},
		{"unrelated", []string{"handling=strict"}, ReturnDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/products", nil)
			for _, h := range tt.headers {
				req.Header.Add("Prefer", h)
			}
			if got := ParsePrefer(req).Return; got != tt.want {
				t.Errorf("Return = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldReturnContent(t *testing.T) {
	if !(Preference{}).ShouldReturnContent() {
		t.Error("default should return content")
	}
	if !(Preference{Return: ReturnRepresentation}).ShouldReturnContent() {
		t.Error("representation should return content")
	}
	if (Preference{Return: ReturnMinimal}).ShouldReturnContent() {
		t.Error("minimal should not return content")
	}
}

func TestApply(t *testing.T) {
	w := httptest.NewRecorder()
	Preference{}.Apply(w)
	if got := w.Header().Get("Preference-Applied"); got != "" {
		t.Errorf("unexpected header %q", got)
	}

	w = httptest.NewRecorder()
	Preference{Return: ReturnMinimal}.Apply(w)
	if got := w.Header().Get("Preference-Applied"); got != "return=minimal" {
		t.Errorf("Preference-Applied = %q", got)
	}
}
