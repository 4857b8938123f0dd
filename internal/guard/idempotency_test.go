package guard

import "testing"

func TestIdempotencyCache_RecordThenSeen(t *testing.T) {
	c := NewIdempotencyCache()
	if c.Seen("deposit_account", "key-1") {
		t.Fatal("expected unseen key before Record")
	}
	c.Record("deposit_account", "key-1")
	if !c.Seen("deposit_account", "key-1") {
		t.Fatal("expected key seen after Record")
	}
}

func TestIdempotencyCache_ScopedByAggregateType(t *testing.T) {
	c := NewIdempotencyCache()
	c.Record("deposit_account", "key-1")
	if c.Seen("loan_account", "key-1") {
		t.Fatal("expected key scoped to its aggregate type")
	}
}

func TestIdempotencyCache_EmptyKeyAlwaysUnseen(t *testing.T) {
	c := NewIdempotencyCache()
	c.Record("deposit_account", "")
	if c.Seen("deposit_account", "") {
		t.Fatal("expected empty key to never be recorded")
	}
}
