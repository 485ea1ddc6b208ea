package redisc

import "testing"

func TestEventChannelRoundTrip(t *testing.T) {
	tests := []struct {
		table  string
		action string
	}{
		{"complaints", "insert"},
		{"it_requests", "update"},
		{"messages", "insert"},
	}
	for _, tt := range tests {
		channel := EventChannel(tt.table, tt.action)
		table, action := parseEventChannel(channel)
		if table != tt.table || action != tt.action {
			t.Errorf("parseEventChannel(%q) = %q, %q; want %q, %q", channel, table, action, tt.table, tt.action)
		}
	}
}

func TestParseEventChannelMalformed(t *testing.T) {
	for _, channel := range []string{"", "events", "events:complaints"} {
		table, action := parseEventChannel(channel)
		if table != "" || action != "" {
			t.Errorf("parseEventChannel(%q) = %q, %q; want empty", channel, table, action)
		}
	}
}
