// Command trustfetch downloads files over HTTPS using the CA bundle selected
// by the environment, and manages the ~/.certs bundle store.
package main

import "github.com/princespaghetti/trustfetch/internal/cli"

func main() {
	cli.Execute()
}
