// Package main is the single-binary entrypoint for clawhire.
package main

import "github.com/mrmrsevennine/clawhire-sub000/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
