package agentloop

import "testing"

func TestAnnouncesAction(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I will delete the temporary files now.", true},
		{"Let me create the component for you.", true},
		{"I'm going to run the test suite.", true},
		{"Next, I update the router configuration.", true},
		{"The file has been created successfully.", false},
		{"Deleted three stale entries from the cache.", false},
		{"I will think about the architecture.", false}, // intent without an action verb
		{"Let me know if you need anything else.", false},
	}
	for _, tt := range tests {
		if got := AnnouncesAction(tt.text); got != tt.want {
			t.Errorf("AnnouncesAction(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestContainsActionVerb(t *testing.T) {
	if !containsActionVerb("please delete the old logs") {
		t.Error("expected action verb in delete request")
	}
	if !containsActionVerb("Create a file named X") {
		t.Error("expected action verb in create request")
	}
	if containsActionVerb("what does this function return?") {
		t.Error("question should not imply an action")
	}
}

func TestIsInfoCapability(t *testing.T) {
	info := []string{"read_file", "list_directory", "browser_screenshot", "get_status", "list_processes"}
	for _, name := range info {
		if !IsInfoCapability(name) {
			t.Errorf("%s should be information-gathering", name)
		}
	}
	action := []string{"write_file", "run_command", "start_dev_server", "stop_dev_server"}
	for _, name := range action {
		if IsInfoCapability(name) {
			t.Errorf("%s should be action-class", name)
		}
	}
}

func TestHasActionDispatch(t *testing.T) {
	log := []ToolInvocation{{Tool: "read_file"}, {Tool: "list_directory"}}
	if hasActionDispatch(log) {
		t.Error("info-only log should not count as acted")
	}
	log = append(log, ToolInvocation{Tool: "write_file"})
	if !hasActionDispatch(log) {
		t.Error("write_file should count as acted")
	}
}

func TestTooTerse(t *testing.T) {
	if !tooTerse("Done.") {
		t.Error("bare acknowledgement should be terse")
	}
	if tooTerse("File created.") {
		t.Error("a short sentence should pass the summary threshold")
	}
	if tooTerse("Created hello.py with the requested greeting.") {
		t.Error("full summary should pass")
	}
}
