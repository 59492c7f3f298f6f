// Command linkauth drives a goLinkAuth engine from the shell: sign-up, magic-link
// login, one-time codes, password login and schema migrations.
//
// Without --redis-addr an in-process Redis is started, and without --postgres-dsn
// identities live in memory, so single invocations work with no infrastructure.
//
//	linkauth signup alice@example.com --name Alice --password correct-horse
//	linkauth complete <token>
//	linkauth auth password alice@example.com correct-horse
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
