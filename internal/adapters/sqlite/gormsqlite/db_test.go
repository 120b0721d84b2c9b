package gormsqlite

import (
	"strings"
	"testing"
)

func TestBuildDSNAppliesPerConnectionPragmas(t *testing.T) {
	dsns := map[string]string{
		"reader": buildDSN("./audits.sqlite", true),
		"writer": buildDSN("./audits.sqlite", false),
	}

	shared := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=trusted_schema(OFF)",
	}
	for role, dsn := range dsns {
		for _, pragma := range shared {
			if !strings.Contains(dsn, pragma) {
				t.Fatalf("%s dsn missing %q: %s", role, pragma, dsn)
			}
		}
	}

	// Readers must never be able to write through the pool.
	if !strings.Contains(dsns["reader"], "_pragma=query_only(1)") {
		t.Fatalf("reader dsn missing query_only(1): %s", dsns["reader"])
	}
	if !strings.Contains(dsns["writer"], "_pragma=query_only(0)") {
		t.Fatalf("writer dsn missing query_only(0): %s", dsns["writer"])
	}
}
