package tarpit

import "testing"

func TestStatsSnapshotFoldsInFlightClients(t *testing.T) {
	s := NewStats()
	s.AddConnect()
	s.AddConnect()
	s.AddBytesSent(100)
	s.AddClosed(2500)

	q := NewFIFO()
	q.Append(&Client{fd: 1, ConnectMS: 1000})
	q.Append(&Client{fd: 2, ConnectMS: 4000})

	got := s.Snapshot(5000, q)
	if got.Connects != 2 {
		t.Errorf("Connects = %d, want 2", got.Connects)
	}
	// 2500 closed + (5000-1000) + (5000-4000) in flight.
	if got.Milliseconds != 2500+4000+1000 {
		t.Errorf("Milliseconds = %d, want %d", got.Milliseconds, 2500+4000+1000)
	}
	if got.BytesSent != 100 {
		t.Errorf("BytesSent = %d, want 100", got.BytesSent)
	}
}

func TestStatsSnapshotWithNilFIFO(t *testing.T) {
	s := NewStats()
	s.AddClosed(700)
	s.AddBytesSent(9)
	got := s.Snapshot(123456, nil)
	if got.Milliseconds != 700 || got.BytesSent != 9 {
		t.Errorf("Snapshot(nil fifo) = %+v, want closed totals only", got)
	}
}
