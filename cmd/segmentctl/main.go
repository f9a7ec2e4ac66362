// Command segmentctl segments customers from purchase history files without
// any running backend.
//
// Usage:
//
//	segmentctl classify -f purchases.yaml [customer-id...]
//	segmentctl batch -f purchases.json --depth comprehensive
package main

import (
	"fmt"
	"os"

	"segment_server/cmd/segmentctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
