package audit

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		hints []string
		want  string
	}{
		{
			name: "sensitive top-level key",
			in:   `{"asset_num":"PUMP001","api_key":"sk-123"}`,
			want: `{"api_key":"[REDACTED]","asset_num":"PUMP001"}`,
		},
		{
			name: "nested object",
			in:   `{"payload":{"password":"hunter2","site_id":"BEDFORD"}}`,
			want: `{"payload":{"password":"[REDACTED]","site_id":"BEDFORD"}}`,
		},
		{
			name: "array of objects",
			in:   `[{"token":"abc"},{"wonum":"WO1001"}]`,
			want: `[{"token":"[REDACTED]"},{"wonum":"WO1001"}]`,
		},
		{
			name: "case insensitive match",
			in:   `{"Authorization":"Bearer xyz"}`,
			want: `{"Authorization":"[REDACTED]"}`,
		},
		{
			name:  "extra hint",
			in:    `{"badge_number":"B-42"}`,
			hints: []string{"badge"},
			want:  `{"badge_number":"[REDACTED]"}`,
		},
		{
			name: "nothing sensitive passes through",
			in:   `{"asset_num":"PUMP001","site_id":"BEDFORD"}`,
			want: `{"asset_num":"PUMP001","site_id":"BEDFORD"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(json.RawMessage(tt.in), tt.hints)

			// Compare structurally; map key order is not stable.
			var gotVal, wantVal any
			if err := json.Unmarshal(got, &gotVal); err != nil {
				t.Fatalf("unmarshal result: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.want), &wantVal); err != nil {
				t.Fatalf("unmarshal want: %v", err)
			}
			gotNorm, _ := json.Marshal(gotVal)
			wantNorm, _ := json.Marshal(wantVal)
			if string(gotNorm) != string(wantNorm) {
				t.Errorf("Redact() = %s; want %s", gotNorm, wantNorm)
			}
		})
	}
}

func TestRedact_NeverLeaksValue(t *testing.T) {
	in := json.RawMessage(`{"outer":{"inner":{"client_secret":"super-sensitive"}}}`)
	out := Redact(in, nil)
	if strings.Contains(string(out), "super-sensitive") {
		t.Fatalf("secret leaked: %s", out)
	}
}

func TestRedact_MalformedInputUnchanged(t *testing.T) {
	in := json.RawMessage(`not json at all`)
	if out := Redact(in, nil); string(out) != string(in) {
		t.Errorf("malformed input should pass through, got %s", out)
	}
}
