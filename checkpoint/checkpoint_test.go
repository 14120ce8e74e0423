package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

func init() {
	logging.SetLevel(logging.ERROR, "checkpoint")
}

type result struct {
	State string
	Sizes []float64
}

func openDB(tst *testing.T) *bolt.DB {
	db, err := bolt.Open(filepath.Join(tst.TempDir(), "checkpoint.db"), 0600, nil)
	if err != nil {
		tst.Fatal("Error opening database:", err)
	}
	tst.Cleanup(func() { db.Close() })
	return db
}

func TestKey(tst *testing.T) {
	k1, err := Key(map[string]interface{}{"windows": 100, "d1": 1900.0})
	if err != nil {
		tst.Fatal(err)
	}
	k2, _ := Key(map[string]interface{}{"windows": 100, "d1": 1900.0})
	k3, _ := Key(map[string]interface{}{"windows": 50, "d1": 1900.0})
	if string(k1) != string(k2) {
		tst.Error("Same configuration should give the same key")
	}
	if string(k1) == string(k3) {
		tst.Error("Different configurations should give different keys")
	}
}

func TestSaveLoad(tst *testing.T) {
	db := openDB(tst)
	key := []byte("run")

	// never save automatically
	c := NewCheckpointIO(db, key, 3600)
	for i := 0; i < 3; i++ {
		if err := c.Add(i, result{State: "s", Sizes: []float64{float64(i)}}); err != nil {
			tst.Fatal("Error adding result:", err)
		}
	}

	n, err := c.Results(func(int, []byte) error { return nil })
	if err != nil || n != 0 {
		tst.Error("Nothing should be saved yet, got", n, err)
	}

	if err := c.Save(); err != nil {
		tst.Fatal("Error saving:", err)
	}

	got := make(map[int]result)
	n, err = NewCheckpointIO(db, key, 3600).Results(func(i int, b []byte) error {
		var r result
		if err := Unmarshal(b, &r); err != nil {
			return err
		}
		got[i] = r
		return nil
	})
	if err != nil {
		tst.Fatal("Error loading:", err)
	}
	if n != 3 || len(got) != 3 {
		tst.Fatal("Expected 3 results, got", n)
	}
	if got[2].Sizes[0] != 2 {
		tst.Error("Wrong result:", got[2])
	}

	// other configurations don't see these results
	n, _ = NewCheckpointIO(db, []byte("other"), 3600).Results(func(int, []byte) error { return nil })
	if n != 0 {
		tst.Error("Expected no results for another key, got", n)
	}
}

func TestAutoSave(tst *testing.T) {
	db := openDB(tst)
	c := NewCheckpointIO(db, []byte("run"), -1)
	if err := c.Add(7, result{State: "x"}); err != nil {
		tst.Fatal("Error adding result:", err)
	}
	data, err := LoadData(db, []byte("run"))
	if err != nil {
		tst.Fatal("Error loading:", err)
	}
	if _, ok := data[7]; !ok {
		tst.Error("Old checkpoint should be saved on add")
	}
}

func TestNilDB(tst *testing.T) {
	c := NewCheckpointIO(nil, []byte("run"), 0)
	if err := c.Add(1, result{}); err != nil {
		tst.Error("Nil database should be a no-op:", err)
	}
	if err := c.Save(); err != nil {
		tst.Error("Nil database should be a no-op:", err)
	}
}
