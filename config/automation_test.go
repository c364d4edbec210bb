package config

import "testing"

func TestAutomationValidate(t *testing.T) {
	if err := DefaultAutomation().Validate(); err != nil {
		t.Errorf("error validating default automation: %s", err)
	}
}

func TestAutomationValidateBadPrefetch(t *testing.T) {
	a := DefaultAutomation()
	a.Prefetch = 2
	if err := a.Validate(); err == nil {
		t.Errorf("expected error for prefetch != 1")
	}
}

func TestAutomationCopy(t *testing.T) {
	a := DefaultAutomation()
	b := a.Copy()

	a.MaxRetries = 99

	if a.MaxRetries == b.MaxRetries {
		t.Errorf("MaxRetries fields should not match")
	}
}
