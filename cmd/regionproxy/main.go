// Command regionproxy sirve el proxy OAuth cross-region y expone comandos de
// operación sobre el KV (mappings y selecciones de región).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
