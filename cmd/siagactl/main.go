// Command siagactl is the operator tool for the auth core: it generates token
// keys, hashes seed passwords, validates policy files and enrolls TOTP secrets.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
