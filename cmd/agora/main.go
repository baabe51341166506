// Package main is the single-binary entrypoint for Agora: the marketplace
// daemon and its CLI in one binary.
package main

import "github.com/agora-network/agora/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
