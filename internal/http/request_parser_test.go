package http

import (
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		optional    bool
		wantMsg     string
	}{
		{name: "valid object", contentType: "application/json", body: `{"name":"Food","amount":12.5}`},
		{name: "charset parameter", contentType: "application/json; charset=utf-8", body: `{"name":"Food"}`},
		{name: "no content type", body: `{"name":"Food"}`},
		{name: "empty optional", contentType: "application/json", optional: true},
		{name: "empty required", contentType: "application/json", wantMsg: "Request body is required"},
		{name: "wrong content type", contentType: "text/plain", body: `{}`, wantMsg: "Content-Type must be application/json"},
		{name: "truncated", contentType: "application/json", body: `{"name":`, wantMsg: "Request body is not valid JSON"},
		{name: "wrong field type", contentType: "application/json", body: `{"amount":"ten"}`, wantMsg: "Field amount has the wrong type"},
		{name: "two objects", contentType: "application/json", body: `{}{}`, wantMsg: "Request body must contain a single JSON object"},
		{name: "too large", contentType: "application/json", body: `{"name":"` + strings.Repeat("x", maxJSONBody) + `"}`, wantMsg: "Request body is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			var p payload
			err := decodeJSON(httptest.NewRecorder(), r, &p, tt.optional)

			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("decodeJSON() error = nil, want %q", tt.wantMsg)
			}
			if core.KindOf(err) != core.KindValidation {
				t.Errorf("kind = %v, want validation", core.KindOf(err))
			}
			if got := core.MessageOf(err); got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		query     string
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{query: "", wantYear: 0, wantMonth: 0},
		{query: "year=2025", wantYear: 2025},
		{query: "year=2025&month=6", wantYear: 2025, wantMonth: 6},
		{query: "month=12", wantMonth: 12},
		{query: "month=13", wantErr: true},
		{query: "month=-1", wantErr: true},
		{query: "year=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			year, month, err := parseYearMonth(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseYearMonth() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if year != tt.wantYear || month != tt.wantMonth {
				t.Errorf("parseYearMonth() = %d, %d, want %d, %d", year, month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Food  ", "Food"},
		{"Gro\x00ceries", "Groceries"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
		{"\x1b[31mred", "[31mred"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if sanitizePtr(nil) != nil {
		t.Error("sanitizePtr(nil) should stay nil")
	}
	s := " Rent "
	if got := sanitizePtr(&s); got == nil || *got != "Rent" {
		t.Errorf("sanitizePtr() = %v, want Rent", got)
	}
}

func TestFormValue(t *testing.T) {
	var body strings.Builder
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "  Ann ")
	_ = mw.WriteField("phone", "")
	_ = mw.Close()

	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body.String()))
	r.Header.Set("Content-Type", mw.FormDataContentType())
	if !isMultipart(r) {
		t.Fatal("isMultipart() = false for multipart/form-data")
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}

	if got := formValue(r, "name"); got == nil || *got != "Ann" {
		t.Errorf("formValue(name) = %v, want Ann", got)
	}
	if got := formValue(r, "phone"); got == nil || *got != "" {
		t.Errorf("formValue(phone) = %v, want empty string", got)
	}
	if got := formValue(r, "company"); got != nil {
		t.Errorf("formValue(company) = %q, want nil", *got)
	}

	plain := httptest.NewRequest(http.MethodPut, "/", nil)
	plain.Header.Set("Content-Type", "application/json")
	if isMultipart(plain) {
		t.Error("isMultipart() = true for application/json")
	}
	if formValue(plain, "name") != nil {
		t.Error("formValue() without a parsed form should be nil")
	}
}
