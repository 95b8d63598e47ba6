package main

import (
	"fmt"
	"os"

	"encodec-converter/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encodec-converter: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "encodec-converter: %v\n", err)
		os.Exit(1)
	}
}
