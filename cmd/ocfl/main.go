// Command ocfl is a command-line client for OCFL 1.0 storage roots,
// covering repository initialization, object staging/commit, browsing,
// and validation.
package main

import "os"

func main() {
	os.Exit(run())
}
