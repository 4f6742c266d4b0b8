// Command labctl runs the results pipeline over a saved rate engine response:
// filter, sort, summarize and export without a server or database.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
