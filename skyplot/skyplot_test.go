package skyplot

import (
	"os"
	"path/filepath"
	"testing"

	"bitbucket.org/Davydov/bsky/skyline"
)

func TestDraw(tst *testing.T) {
	ws, err := skyline.Windows(2000, 2010, 5)
	if err != nil {
		tst.Fatal(err)
	}
	rows := [][]skyline.Value{
		{{Size: 1, Covered: true}, {Size: 2, Covered: true}, {Size: 4, Covered: true}, {}, {}},
		{{Size: 2, Covered: true}, {Size: 3, Covered: true}, {Size: 5, Covered: true}, {Size: 6, Covered: true}, {}},
	}
	band := skyline.Band(rows, len(ws))

	for _, name := range []string{"sky.png", "sky.svg"} {
		fn := filepath.Join(tst.TempDir(), name)
		if err := Draw(fn, ws, band); err != nil {
			tst.Fatal("Error drawing plot:", err)
		}
		st, err := os.Stat(fn)
		if err != nil {
			tst.Fatal("Plot was not saved:", err)
		}
		if st.Size() == 0 {
			tst.Error("Empty plot file", fn)
		}
	}
}

func TestDrawEmpty(tst *testing.T) {
	ws, _ := skyline.Windows(2000, 2010, 2)
	band := skyline.Band([][]skyline.Value{{{}, {}}}, 2)
	if err := Draw(filepath.Join(tst.TempDir(), "sky.png"), ws, band); err == nil {
		tst.Error("Expected error for an empty plot")
	}
	if err := Draw("sky.png", ws, band[:1]); err == nil {
		tst.Error("Expected error for mismatched lengths")
	}
}
