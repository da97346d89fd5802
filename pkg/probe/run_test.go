package probe

import "testing"

func TestSplitKey(t *testing.T) {
	probeName, zone := splitKey("dns-management|eu-west-1a")
	if probeName != "dns-management" || zone != "eu-west-1a" {
		t.Fatalf("got (%q, %q)", probeName, zone)
	}
}

func TestParseHeartbeatName(t *testing.T) {
	probeName, zone, ts, err := parseHeartbeatName("dns-management-probe-eu-west-1a-1700000000")
	if err != nil {
		t.Fatalf("parseHeartbeatName: %v", err)
	}
	if probeName != "dns-management" || zone != "eu-west-1a" {
		t.Fatalf("got (%q, %q, %v)", probeName, zone, ts)
	}
	if ts.Unix() != 1700000000 {
		t.Fatalf("got timestamp %v", ts)
	}
}

func TestParseHeartbeatNameRegional(t *testing.T) {
	probeName, zone, _, err := parseHeartbeatName("api-probe-regional-1700000000")
	if err != nil {
		t.Fatalf("parseHeartbeatName: %v", err)
	}
	if probeName != "api" || zone != "regional" {
		t.Fatalf("got (%q, %q)", probeName, zone)
	}
}

func TestParseHeartbeatNameMalformed(t *testing.T) {
	if _, _, _, err := parseHeartbeatName("not-a-heartbeat-name"); err == nil {
		t.Fatal("expected an error for a malformed heartbeat name")
	}
}
