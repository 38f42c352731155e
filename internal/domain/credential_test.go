package domain

import "testing"

func TestPlatformValid(t *testing.T) {
	for _, p := range []Platform{PlatformTelegram, PlatformGmail, PlatformGoogle} {
		if !p.Valid() {
			t.Fatalf("%q should be valid", p)
		}
	}
	if Platform("myspace").Valid() {
		t.Fatalf("unknown platform reported valid")
	}
}

func TestCredential_CapabilitySet(t *testing.T) {
	c := Credential{Capabilities: " youtube, gmail ,,"}
	got := c.CapabilitySet()
	if len(got) != 2 || got[0] != CapabilityYouTube || got[1] != CapabilityGmail {
		t.Fatalf("CapabilitySet = %v", got)
	}
	if !c.HasCapability(CapabilityGmail) {
		t.Fatalf("expected gmail capability")
	}
	if (Credential{}).HasCapability(CapabilityGmail) {
		t.Fatalf("empty record must not grant capabilities")
	}
}

func TestJoinCapabilities_SortsAndDedups(t *testing.T) {
	got := JoinCapabilities(CapabilityYouTube, CapabilityGmail, CapabilityYouTube, " ")
	if got != "gmail,youtube" {
		t.Fatalf("JoinCapabilities = %q", got)
	}
}

func TestAutomation_Active(t *testing.T) {
	var nilAuto *Automation
	if nilAuto.Active() {
		t.Fatalf("nil automation must not be active")
	}
	a := &Automation{Status: AutomationPaused}
	if a.Active() {
		t.Fatalf("paused automation must not be active")
	}
	a.Status = AutomationActive
	if !a.Active() {
		t.Fatalf("active automation reported inactive")
	}
}
