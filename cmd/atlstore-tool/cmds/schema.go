package cmds

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cryodata/atlstore"
)

func init() {
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema store-dir",
	Short: "Print the store's parquet schema and embedded metadata",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			os.Exit(1)
		}

		store, err := atlstore.OpenStore(args[0])
		if err != nil {
			log.Fatalf("Can not open the store: %q", err)
		}

		def, meta, err := store.Schema()
		if err != nil {
			log.Fatalf("Reading the store schema failed: %q", err)
		}

		fmt.Print(def)

		keys := make([]string, 0, len(meta))
		for key := range meta {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%s: %s\n", key, meta[key])
		}
	},
}
