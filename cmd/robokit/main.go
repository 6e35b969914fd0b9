// robokit is a CLI utility for inspecting and converting robot
// description files (URDF, MJCF, USD).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/robokit/internal/config"
	"github.com/Faultbox/robokit/internal/logger"
	"github.com/Faultbox/robokit/pkg/formats"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "info":
		cmdInfo(cfg, rest)
	case "tree":
		cmdTree(cfg, rest)
	case "convert":
		cmdConvert(cfg, rest)
	case "pose":
		cmdPose(cfg, rest)
	case "assets", "resolve":
		cmdAssets(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`robokit - robot description toolkit

Usage:
  robokit [flags] <command> [options]

Commands:
  info <file>                          Show document summary
  tree <file>                          Print the kinematic tree
  convert <in> <out> [-format f]       Convert between dialects
  pose <file> -set joint=v[,v,...]     Apply joint values, report moved links
  assets <file> -dir <path> [-probe]   Resolve mesh references against a directory

Examples:
  robokit info robot.urdf
  robokit tree scene.mjcf
  robokit convert robot.urdf robot.mjcf -extended
  robokit pose robot.urdf -set wheel_joint=1.5708
  robokit assets robot.urdf -dir ./meshes -probe`)
}

// loadDocument parses one robot description with the configured package
// map and logs its warnings.
func loadDocument(cfg *config.Config, path string) *formats.Document {
	opts := &formats.ParseOptions{PackageMap: cfg.Assets.Packages}
	doc, err := formats.ParseFile(path, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range doc.Warnings {
		logger.Sugar.Warnf("%s: %s", path, w)
	}
	return doc
}
