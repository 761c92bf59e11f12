package cmds

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/spf13/cobra"

	"github.com/cryodata/atlstore"
)

func init() {
	rootCmd.AddCommand(lsCmd)
}

var lsCmd = &cobra.Command{
	Use:   "ls store-dir",
	Short: "List the partitions of a store with their files and row counts",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			os.Exit(1)
		}

		store, err := atlstore.OpenStore(args[0])
		if err != nil {
			log.Fatalf("Can not open the store: %q", err)
		}

		keys, err := store.Partitions()
		if err != nil {
			log.Fatalf("Listing partitions failed: %q", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PARTITION\tFILE\tROWS")
		for _, key := range keys {
			files, err := store.Files(key)
			if err != nil {
				log.Fatalf("Listing partition %s failed: %q", key, err)
			}
			for _, path := range files {
				rows, err := countRows(path)
				if err != nil {
					log.Fatalf("Reading %s failed: %q", path, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", key, path, rows)
			}
		}
		w.Flush()
	},
}

func countRows(path string) (int64, error) {
	fl, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer fl.Close()

	reader, err := goparquet.NewFileReader(fl)
	if err != nil {
		return 0, err
	}
	return reader.NumRows(), nil
}
