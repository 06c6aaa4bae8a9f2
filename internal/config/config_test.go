package config

import (
	"reflect"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); got != nil {
		t.Fatalf("empty input = %v, want nil (allow-all)", got)
	}

	got := parseOrigins(" https://a.example , https://b.example ,, ")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parsed = %v, want %v", got, want)
	}
}

func TestCacheKeyShapes(t *testing.T) {
	if got := CacheKey.AttemptStartKey("t1", 42); got != "candidate:42:test:t1:attempt_start" {
		t.Fatalf("attempt start key = %q", got)
	}
	if got := CacheKey.TestMonitorChannel("t1"); got != "test:t1:monitor" {
		t.Fatalf("monitor channel = %q", got)
	}
}
