package spoolman

import (
	"errors"
	"strings"
	"testing"

	"github.com/spoolworks/spoolbridge/internal/testutil/testlog"
)

func TestDecodeRecordPreservesFieldOrder(t *testing.T) {
	testlog.Start(t)
	rec, err := DecodeRecord(strings.NewReader(`{
		"zeta": 1,
		"alpha": 2,
		"mid": 3
	}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	wantKeys := []string{"zeta", "alpha", "mid"}
	if len(rec.Fields) != len(wantKeys) {
		t.Fatalf("unexpected field count: %d", len(rec.Fields))
	}
	for i, key := range wantKeys {
		if rec.Fields[i].Key != key {
			t.Fatalf("field %d key = %q, want %q", i, rec.Fields[i].Key, key)
		}
	}
}

func TestDecodeRecordValueKinds(t *testing.T) {
	testlog.Start(t)
	rec, err := DecodeRecord(strings.NewReader(`{
		"weight": 1000,
		"diameter": 1.75,
		"material": "PLA",
		"vendor": {"name": "Acme"},
		"archived": false
	}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(rec.Fields) != 5 {
		t.Fatalf("unexpected field count: %d", len(rec.Fields))
	}

	if v := rec.Fields[0].Value; v.Kind != KindInt || v.Int != 1000 {
		t.Fatalf("weight decoded wrong: %+v", v)
	}
	if v := rec.Fields[1].Value; v.Kind != KindFloat || v.Float != 1.75 {
		t.Fatalf("diameter decoded wrong: %+v", v)
	}
	if v := rec.Fields[2].Value; v.Kind != KindText || v.Text != "PLA" {
		t.Fatalf("material decoded wrong: %+v", v)
	}
	vendor := rec.Fields[3].Value
	if vendor.Kind != KindRecord || vendor.Record.Len() != 1 || vendor.Record.Fields[0].Key != "name" {
		t.Fatalf("vendor decoded wrong: %+v", vendor)
	}
	if v := rec.Fields[4].Value; v.Kind != KindText || v.Text != "false" {
		t.Fatalf("archived decoded wrong: %+v", v)
	}
}

func TestDecodeRecordDropsNullAndArrayFields(t *testing.T) {
	testlog.Start(t)
	rec, err := DecodeRecordBytes([]byte(`{
		"comment": null,
		"tags": ["a", {"b": [1, 2]}],
		"material": "PETG"
	}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(rec.Fields) != 1 || rec.Fields[0].Key != "material" {
		t.Fatalf("expected only material to survive, got %+v", rec.Fields)
	}
}

func TestDecodeRecordMalformed(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name string
		body string
	}{
		{"array top level", `[1, 2]`},
		{"bare scalar", `42`},
		{"truncated", `{"material": "PLA"`},
		{"garbage", `not json`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRecordBytes([]byte(tc.body))
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("expected ErrMalformedRecord, got %v", err)
			}
		})
	}
}
