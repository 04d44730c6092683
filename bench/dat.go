package bench

import (
	"bufio"
	"fmt"
	"io"
)

const columnWidth = 20

var datHeader = []string{"index", "leaf", "error rate", "true nn", "subdomain", "space blowup"}

// WriteDat writes rows as a table of right aligned columns. Failed rows are
// left out.
func WriteDat(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	for _, h := range datHeader {
		fmt.Fprintf(bw, "%*s", columnWidth, h)
	}
	fmt.Fprintln(bw)

	for _, row := range rows {
		if row.Err != nil {
			continue
		}
		fmt.Fprintf(bw, "%*s", columnWidth, row.Name())
		for _, v := range []float64{row.LeafSize, row.ErrorRate, row.TrueNN, row.Subdomain, row.SpaceBlowup} {
			fmt.Fprintf(bw, "%*.6g", columnWidth, v)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
