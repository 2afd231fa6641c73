// Command mmrctl drives the multimedia retrieval indexing core from the
// command line.
//
// Usage:
//
//	mmrctl [--config path] <command> [args]
//
// Commands:
//
//	compute    compute descriptors for files and store them in the vector index
//	hashcodes  hash every stored descriptor into the inverted hash index
//	svmtrain   export labeled descriptors as a libSVM training file
package main

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/cmd/mmrctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
