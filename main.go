package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"os"

	"github.com/JonMunkholm/synthdata/internal/cli"
)

//go:embed web/*
var webFS embed.FS

func main() {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		log.Fatalf("Failed to load web assets: %v", err)
	}
	os.Exit(cli.Execute(context.Background(), sub, os.Args[1:], os.Stderr))
}
