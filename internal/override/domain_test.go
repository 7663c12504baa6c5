package override

import (
	"testing"
	"time"
)

func TestGrantLive(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	if !(Grant{}).Live(now) {
		t.Fatal("grant without expiry must be live")
	}
	if !(Grant{ExpiresAt: &future}).Live(now) {
		t.Fatal("grant expiring after now must be live")
	}
	if (Grant{ExpiresAt: &past}).Live(now) {
		t.Fatal("expired grant must not be live")
	}
	if (Grant{ExpiresAt: &now}).Live(now) {
		t.Fatal("grant expiring exactly now must not be live")
	}
}

func TestGrantMatchesResource(t *testing.T) {
	docType, recType := "document", "record"
	doc42, doc99 := "42", "99"

	unscoped := Grant{}
	scoped := Grant{ResourceType: &docType, ResourceID: &doc42}

	if !unscoped.MatchesResource(&docType, &doc42) || !unscoped.MatchesResource(nil, nil) {
		t.Fatal("unscoped grant must match any resource")
	}
	if !scoped.MatchesResource(&docType, &doc42) {
		t.Fatal("scoped grant must match its exact resource")
	}
	if scoped.MatchesResource(&docType, &doc99) {
		t.Fatal("scoped grant matched a different resource id")
	}
	if scoped.MatchesResource(&recType, &doc42) {
		t.Fatal("scoped grant matched a different resource type")
	}
	if scoped.MatchesResource(nil, nil) {
		t.Fatal("scoped grant matched a check without a resource")
	}
}
