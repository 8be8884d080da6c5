package engine

import (
	"encoding/json"
	"reflect"
	"testing"
)

func testDatasets() Datasets {
	return Datasets{
		"application": {
			"lender_name": "Acme Capital",
			"amount":      25000.0,
			"funded":      false,
			"collateral": map[string]any{
				"vin":   "1HGCM82633A004352",
				"value": 18250.5,
			},
		},
		"test": {
			"number_A": 150.0,
			"date_A":   "2024-01-01",
			"date_B":   "2024-01-31",
		},
	}
}

func TestResolve(t *testing.T) {
	ds := testDatasets()

	tests := []struct {
		name string
		path string
		want any
	}{
		{
			name: "top level field",
			path: "application.lender_name",
			want: "Acme Capital",
		},
		{
			name: "nested field",
			path: "application.collateral.vin",
			want: "1HGCM82633A004352",
		},
		{
			name: "numeric field",
			path: "test.number_A",
			want: 150.0,
		},
		{
			name: "boolean field",
			path: "application.funded",
			want: false,
		},
		{
			name: "missing dataset",
			path: "accounting.balance",
			want: nil,
		},
		{
			name: "missing field",
			path: "application.cosigner",
			want: nil,
		},
		{
			name: "missing nested field",
			path: "application.collateral.mileage",
			want: nil,
		},
		{
			name: "scalar used as object",
			path: "application.lender_name.first",
			want: nil,
		},
		{
			name: "empty path",
			path: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ds.Resolve(tt.path)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveDoesNotMutateDatasets(t *testing.T) {
	ds := testDatasets()
	before, err := json.Marshal(map[string]Dataset(ds))
	if err != nil {
		t.Fatalf("marshal before: %v", err)
	}

	ds.Resolve("application.collateral.vin")
	ds.Resolve("missing.path.entirely")
	ds.ResolveAll([]string{"test.date_A", "nope.nope", "application.amount"})

	after, err := json.Marshal(map[string]Dataset(ds))
	if err != nil {
		t.Fatalf("marshal after: %v", err)
	}
	if string(before) != string(after) {
		t.Errorf("datasets changed during resolution:\nbefore = %s\nafter  = %s", before, after)
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	ds := testDatasets()
	paths := []string{"test.date_B", "missing.field", "test.date_A"}

	got := ds.ResolveAll(paths)
	if len(got) != 3 {
		t.Fatalf("len(ResolveAll()) = %d, want 3", len(got))
	}
	for i, p := range paths {
		if got[i].Path != p {
			t.Errorf("ResolveAll()[%d].Path = %q, want %q", i, got[i].Path, p)
		}
	}
	if got[0].Value != "2024-01-31" {
		t.Errorf("ResolveAll()[0].Value = %v, want 2024-01-31", got[0].Value)
	}
	if got[1].Value != nil {
		t.Errorf("ResolveAll()[1].Value = %v, want nil", got[1].Value)
	}
	if !reflect.DeepEqual(got.Values(), []any{"2024-01-31", nil, "2024-01-01"}) {
		t.Errorf("Values() = %v, want resolved values in input order", got.Values())
	}
}

func TestDependsValuesMarshalOrder(t *testing.T) {
	d := DependsValues{
		{Path: "test.zulu", Value: 1.0},
		{Path: "test.alpha", Value: nil},
		{Path: "test.mike", Value: "m"},
	}
	buf, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"test.zulu":1,"test.alpha":null,"test.mike":"m"}`
	if string(buf) != want {
		t.Errorf("Marshal() = %s, want %s (keys in input order)", buf, want)
	}
}

func TestValidPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"application.amount", true},
		{"a.b.c.d", true},
		{"application", false},
		{"", false},
		{".amount", false},
		{"application.", false},
		{"a..b", false},
	}
	for _, tt := range tests {
		if got := validPath(tt.path); got != tt.want {
			t.Errorf("validPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
