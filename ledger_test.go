package rtccore

import "testing"

func TestRequestLedger_PushAndFind(t *testing.T) {
	l := newRequestLedger(8)

	l.push(1, 100)
	l.push(2, 200)
	l.push(3, 300)

	ts, ok := l.findAndPruneThrough(2)
	if !ok {
		t.Fatal("id 2 should be present")
	}
	if ts != 200 {
		t.Errorf("timestamp = %d, want 200", ts)
	}
	if l.len() != 1 {
		t.Errorf("len = %d, want 1 (id 3 remains)", l.len())
	}
}

func TestRequestLedger_PruneForeclosesOlder(t *testing.T) {
	l := newRequestLedger(8)
	for id := uint32(1); id <= 5; id++ {
		l.push(id, int64(id)*100)
	}

	// Completing 3 consumes 3 and expires 1 and 2.
	if _, ok := l.findAndPruneThrough(3); !ok {
		t.Fatal("id 3 should be present")
	}
	if _, ok := l.findAndPruneThrough(1); ok {
		t.Error("id 1 should be foreclosed")
	}
	if _, ok := l.findAndPruneThrough(2); ok {
		t.Error("id 2 should be foreclosed")
	}
	if _, ok := l.findAndPruneThrough(3); ok {
		t.Error("id 3 should not resolve twice")
	}

	// Newer ids still resolve.
	if _, ok := l.findAndPruneThrough(4); !ok {
		t.Error("id 4 should still be present")
	}
	if _, ok := l.findAndPruneThrough(5); !ok {
		t.Error("id 5 should still be present")
	}
}

func TestRequestLedger_MissLeavesLedgerUntouched(t *testing.T) {
	l := newRequestLedger(8)
	l.push(1, 100)
	l.push(2, 200)

	if _, ok := l.findAndPruneThrough(99); ok {
		t.Fatal("unknown id should not resolve")
	}
	if l.len() != 2 {
		t.Errorf("len = %d, want 2 after miss", l.len())
	}
}

func TestRequestLedger_CapacityBound(t *testing.T) {
	const capacity = 4
	l := newRequestLedger(capacity)

	// capacity + k pushes leave exactly capacity entries, the most recent.
	for id := uint32(1); id <= capacity+3; id++ {
		l.push(id, int64(id))
	}
	if l.len() != capacity {
		t.Fatalf("len = %d, want %d", l.len(), capacity)
	}

	// Oldest survivor is id 4; ids 1-3 were evicted.
	for id := uint32(1); id <= 3; id++ {
		if _, ok := l.findAndPruneThrough(id); ok {
			t.Errorf("id %d should have been evicted", id)
		}
	}
	for id := uint32(4); id <= capacity+3; id++ {
		if _, ok := l.findAndPruneThrough(id); !ok {
			t.Errorf("id %d should be present", id)
		}
	}
}

func TestRequestLedger_DefaultCapacity(t *testing.T) {
	l := newRequestLedger(0)
	for id := uint32(0); id < defaultLedgerCapacity*2; id++ {
		l.push(id, 0)
	}
	if l.len() != defaultLedgerCapacity {
		t.Errorf("len = %d, want %d", l.len(), defaultLedgerCapacity)
	}
}

func TestRequestLedger_Clear(t *testing.T) {
	l := newRequestLedger(8)
	l.push(1, 100)
	l.push(2, 200)
	l.clear()
	if l.len() != 0 {
		t.Errorf("len = %d, want 0 after clear", l.len())
	}
	if _, ok := l.findAndPruneThrough(1); ok {
		t.Error("cleared ledger should not resolve anything")
	}
}
