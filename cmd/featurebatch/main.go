// Command featurebatch extracts keypoint features from a directory of images
// and writes one YAML document per image.
//
// Usage:
//
//	featurebatch run -c config.yaml [--workers N] [--source DIR] [--output DIR]
//	featurebatch serve -c config.yaml
//	featurebatch validate -c config.yaml
//	featurebatch version
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
