package contracts

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestArchiveFetched_JSONFieldNames(t *testing.T) {
	event := ArchiveFetched{
		RequestID:    "req-1",
		RunID:        123456,
		Identifier:   "PR #1276",
		EntryName:    "chunky-core-2.5.0-PR.1276.jar",
		ArchiveBytes: 1200,
		Cached:       true,
		FetchedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, want := range []string{
		`"request_id":"req-1"`,
		`"run_id":123456`,
		`"identifier":"PR #1276"`,
		`"entry_name":"chunky-core-2.5.0-PR.1276.jar"`,
		`"archive_bytes":1200`,
		`"cached":true`,
		`"fetched_at":"2024-01-02T03:04:05Z"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in %s", want, data)
		}
	}
}
