package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/chrissnell/floodfreq/pkg/config"
)

func main() {
	yamlFile := flag.String("yaml", "", "Path to YAML configuration file")
	flag.Parse()

	if *yamlFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Test")
	fmt.Println("==================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	provider := config.NewYAMLProvider(*yamlFile)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration is valid")

	fmt.Println("\nSettings differing from defaults:")
	defaults := config.NewConfigData()
	n := compareSection("server", cfg.Server, defaults.Server) +
		compareSection("gateway", cfg.Gateway, defaults.Gateway) +
		compareSection("sessions", cfg.Sessions, defaults.Sessions) +
		compareSection("analysis", cfg.Analysis, defaults.Analysis)
	if n == 0 {
		fmt.Println("  (none)")
	}
}

// compareSection prints every top-level field of a section that differs
// from its default and returns how many did
func compareSection(name string, got, want any) int {
	gv, wv := reflect.ValueOf(got), reflect.ValueOf(want)
	n := 0
	for i := 0; i < gv.NumField(); i++ {
		if reflect.DeepEqual(gv.Field(i).Interface(), wv.Field(i).Interface()) {
			continue
		}
		fmt.Printf("  %s.%s: %v (default %v)\n", name, gv.Type().Field(i).Name, gv.Field(i).Interface(), wv.Field(i).Interface())
		n++
	}
	return n
}
