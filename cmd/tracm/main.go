// cmd/tracm/main.go
package main

import (
	"os"

	"github.com/gtonkinhill/tracm/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:], os.Stdout, os.Stderr))
}
