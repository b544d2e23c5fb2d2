// Command git-pkgs indexes a git repository's dependency manifests commit
// by commit and answers point-in-time "what did this project depend on"
// queries against the resulting store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
