package cmds

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cryodata/atlstore"
)

var (
	catColumns *[]string
	catLimit   *int
	yearMin    *int
	yearMax    *int
	monthMin   *int
	monthMax   *int
)

func init() {
	catColumns = catCmd.PersistentFlags().StringSliceP("columns", "c", nil, "Columns to project; all columns if empty")
	catLimit = catCmd.PersistentFlags().IntP("limit", "n", -1, "Maximum number of rows to print, -1 for all")
	yearMin = catCmd.PersistentFlags().Int("year-min", 0, "Lower bound on the year partition key")
	yearMax = catCmd.PersistentFlags().Int("year-max", 0, "Upper bound on the year partition key")
	monthMin = catCmd.PersistentFlags().Int("month-min", 0, "Lower bound on the month partition key")
	monthMax = catCmd.PersistentFlags().Int("month-max", 0, "Upper bound on the month partition key")
	rootCmd.AddCommand(catCmd)
}

var catCmd = &cobra.Command{
	Use:   "cat store-dir",
	Short: "Print rows from a store, restricted to matching partitions",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			os.Exit(1)
		}

		store, err := atlstore.OpenStore(args[0])
		if err != nil {
			log.Fatalf("Can not open the store: %q", err)
		}

		var filters []atlstore.Filter
		if *yearMin > 0 {
			filters = append(filters, atlstore.Filter{Column: "year", Op: atlstore.OpGtEq, Value: *yearMin})
		}
		if *yearMax > 0 {
			filters = append(filters, atlstore.Filter{Column: "year", Op: atlstore.OpLtEq, Value: *yearMax})
		}
		if *monthMin > 0 {
			filters = append(filters, atlstore.Filter{Column: "month", Op: atlstore.OpGtEq, Value: *monthMin})
		}
		if *monthMax > 0 {
			filters = append(filters, atlstore.Filter{Column: "month", Op: atlstore.OpLtEq, Value: *monthMax})
		}

		rs, err := store.Query(context.Background(), *catColumns, filters...)
		if err != nil {
			log.Fatalf("Query failed: %q", err)
		}
		defer rs.Close()

		for i := 0; *catLimit < 0 || i < *catLimit; i++ {
			row, err := rs.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				log.Fatalf("Reading data failed: %q", err)
			}
			printRow(os.Stdout, row)
		}
	},
}

func printRow(w io.Writer, row map[string]interface{}) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		switch v := row[col].(type) {
		case []byte:
			if col == "geometry" {
				p, err := atlstore.PointFromWKB(v)
				if err == nil {
					fmt.Fprintf(w, "%s = POINT (%g %g)\n", col, p.Lon, p.Lat)
					continue
				}
			}
			fmt.Fprintf(w, "%s = %s\n", col, string(v))
		default:
			fmt.Fprintf(w, "%s = %v\n", col, v)
		}
	}
	fmt.Fprintln(w)
}
