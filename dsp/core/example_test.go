package core_test

import (
	"fmt"

	"github.com/cwbudde/algo-oct/dsp/core"
)

func ExampleEnsureLen() {
	buf := make([]float64, 2, 4)
	buf[0], buf[1] = 1, 2
	buf = core.EnsureLen(buf, 4)
	buf[2], buf[3] = 3, 4
	fmt.Println(buf)

	core.Zero(buf[:2])
	fmt.Println(buf)

	// Output:
	// [1 2 3 4]
	// [0 0 3 4]
}

func ExampleClampInt() {
	fmt.Println(core.ClampInt(-1, 0, 1021), core.ClampInt(2000, 0, 1021))
	// Output:
	// 0 1021
}
