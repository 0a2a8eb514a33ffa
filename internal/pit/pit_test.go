package pit

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"venuequote/internal/quote"
)

func mkBook(symbol, exchange string, last float64) map[string]map[string]quote.Quote {
	return map[string]map[string]quote.Quote{
		symbol: {exchange: {DisplaySymbol: symbol, Exchange: exchange, Last: last}},
	}
}

func TestCaptureAndRecent(t *testing.T) {
	s := New(4, "")
	s.Capture(mkBook("BTCUSDT", "binance", 60000))
	s.Capture(mkBook("BTCUSDT", "binance", 60001))

	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(recent))
	}
	if recent[len(recent)-1].Book["BTCUSDT"]["binance"].Last != 60001 {
		t.Errorf("expected newest snapshot last, got %+v", recent[len(recent)-1])
	}
}

func TestRecentCapsAtRingSize(t *testing.T) {
	s := New(2, "")
	for i := 0; i < 5; i++ {
		s.Capture(mkBook("BTCUSDT", "binance", float64(60000+i)))
	}
	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected ring capped at 2 entries, got %d", len(recent))
	}
	if recent[1].Book["BTCUSDT"]["binance"].Last != 60004 {
		t.Errorf("expected newest entry retained, got %+v", recent[1])
	}
}

func TestRecentNRequestLargerThanRing(t *testing.T) {
	s := New(4, "")
	s.Capture(mkBook("BTCUSDT", "binance", 60000))
	if got := s.Recent(100); len(got) != 1 {
		t.Fatalf("expected Recent to cap at available entries, got %d", len(got))
	}
}

func TestDefaultCapacityAppliedForNonPositiveInput(t *testing.T) {
	s := New(0, "")
	if s.capacity != 64 {
		t.Fatalf("expected default capacity 64, got %d", s.capacity)
	}
}

func TestCaptureFlushesEvictedSnapshotToDisk(t *testing.T) {
	dir := t.TempDir()
	s := New(1, dir)
	s.Capture(mkBook("BTCUSDT", "binance", 60000))
	if err := s.Capture(mkBook("BTCUSDT", "binance", 60001)); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one flushed snapshot file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("open flushed file: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()
	var snap Snapshot
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		t.Fatalf("decode flushed snapshot: %v", err)
	}
	if snap.Book["BTCUSDT"]["binance"].Last != 60000 {
		t.Errorf("expected the evicted (oldest) snapshot to be flushed, got %+v", snap)
	}
}

func TestCaptureWithoutBasePathDiscardsEvicted(t *testing.T) {
	s := New(1, "")
	s.Capture(mkBook("BTCUSDT", "binance", 60000))
	if err := s.Capture(mkBook("BTCUSDT", "binance", 60001)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Recent(10)) != 1 {
		t.Fatalf("expected ring to hold only the latest entry")
	}
}
