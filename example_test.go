package vexdb_test

import (
	"fmt"

	"github.com/vexdb/vexdb"
	"github.com/vexdb/vexdb/distance"
)

func Example() {
	idx, err := vexdb.New(3, distance.Euclidean)
	if err != nil {
		panic(err)
	}

	_ = idx.Insert(1, []float32{1, 0, 0})
	_ = idx.Insert(2, []float32{0, 1, 0})
	_ = idx.Insert(3, []float32{10, 10, 10})

	results, err := idx.Search([]float32{0, 0.9, 0}, 2)
	if err != nil {
		panic(err)
	}

	for _, r := range results {
		fmt.Println(r.ID)
	}
	// Output:
	// 2
	// 1
}
