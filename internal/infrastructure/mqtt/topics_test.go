package mqtt

import "testing"

func TestTopics_StateLeaf(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "leaf path",
			path: "site1.ssids.SS1.hidden",
			want: "graylogic/omada/state/site1/ssids/SS1/hidden",
		},
		{
			name: "connectivity leaf",
			path: "info.connection",
			want: "graylogic/omada/state/info/connection",
		},
		{
			name: "single segment",
			path: "site1",
			want: "graylogic/omada/state/site1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Topics{}).StateLeaf(tt.path); got != tt.want {
				t.Errorf("StateLeaf(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestTopics_SetTopicToPath(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{
			name:  "round trip",
			topic: "graylogic/omada/set/site1/ssids/SS1/hidden",
			want:  "site1.ssids.SS1.hidden",
		},
		{
			name:  "not a set topic",
			topic: "graylogic/omada/state/site1/ssids/SS1/hidden",
			want:  "",
		},
		{
			name:  "foreign topic",
			topic: "homeassistant/light/kitchen",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Topics{}).SetTopicToPath(tt.topic); got != tt.want {
				t.Errorf("SetTopicToPath(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestTopics_RoundTrip(t *testing.T) {
	path := "site1.clients.AA-BB-CC-DD-EE-FF.ip"
	topic := Topics{}.SetLeaf(path)
	if got := (Topics{}).SetTopicToPath(topic); got != path {
		t.Errorf("SetTopicToPath(SetLeaf(%q)) = %q, want original path", path, got)
	}
}

func TestTopics_Fixed(t *testing.T) {
	if got := (Topics{}).BridgeHealth(); got != "graylogic/health/omada" {
		t.Errorf("BridgeHealth() = %q", got)
	}
	if got := (Topics{}).SystemStatus(); got != "graylogic/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
	if got := (Topics{}).AllSetLeaves(); got != "graylogic/omada/set/#" {
		t.Errorf("AllSetLeaves() = %q", got)
	}
	if got := (Topics{}).WriteAck("req-1"); got != "graylogic/omada/ack/req-1" {
		t.Errorf("WriteAck() = %q", got)
	}
}
