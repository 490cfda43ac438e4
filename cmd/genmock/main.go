// Command genmock writes sample Argo profile files for the scan command.
//
// Usage:
//
//	go run ./cmd/genmock -out test_data -format cdf
//
// It writes one file per case the importer distinguishes: a raw profile
// with missing pressures, a fully adjusted profile, an adjusted profile
// without PSAL_ADJUSTED and a profile whose pressures are all fill values.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"argo_data_import/samples"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outputDir := flag.String("out", "test_data", "directory to write the sample files to")
	formatName := flag.String("format", "cdf", "file layout: cdf (classic) or hdf5 (NetCDF-4)")
	flag.Parse()

	format, err := samples.ParseFormat(*formatName)
	if err != nil {
		flag.Usage()
		return err
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	profiles := samples.All()
	errs := make([]error, len(profiles))

	var wg sync.WaitGroup
	for i, p := range profiles {
		wg.Add(1)
		go func(i int, p samples.Profile) {
			defer wg.Done()
			path := filepath.Join(*outputDir, p.FileName)
			if err := samples.Write(path, format, p); err != nil {
				errs[i] = err
				return
			}
			fmt.Printf("Generated %s (float %s, %d levels)\n", path, p.Platform, p.Levels())
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	fmt.Printf("All %d sample files written to %s\n", len(profiles), *outputDir)
	return nil
}
