package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/robokit/internal/config"
	"github.com/Faultbox/robokit/pkg/assets"
	"github.com/Faultbox/robokit/pkg/formats"
	"github.com/Faultbox/robokit/pkg/model"
)

func cmdInfo(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: robokit info <file>")
		os.Exit(1)
	}

	doc := loadDocument(cfg, fs.Arg(0))
	r := doc.Robot

	synthesized, visuals, collisions := 0, 0, 0
	meshes := map[string]bool{}
	for _, id := range r.LinkIDs() {
		l := r.Links[id]
		if l.Synthesized {
			synthesized++
		}
		if !l.Visual.IsNone() {
			visuals++
		}
		if !l.Collision.IsNone() {
			collisions++
		}
		for _, g := range []model.Geometry{l.Visual, l.Collision} {
			if g.Shape == model.ShapeMesh && g.MeshPath != "" {
				meshes[g.MeshPath] = true
			}
		}
	}

	byType := map[string]int{}
	for _, id := range r.JointIDs() {
		byType[r.Joints[id].Type.String()]++
	}
	var types []string
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	var parts []string
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", byType[t], t))
	}

	fmt.Printf("File:     %s\n", fs.Arg(0))
	fmt.Printf("Dialect:  %s\n", doc.Dialect)
	fmt.Printf("Name:     %s\n", r.Name)
	fmt.Printf("Root:     %s\n", r.Root)
	fmt.Printf("Links:    %d (%d synthesized)\n", len(r.Links), synthesized)
	fmt.Printf("Joints:   %d", len(r.Joints))
	if len(parts) > 0 {
		fmt.Printf(" (%s)", strings.Join(parts, ", "))
	}
	fmt.Println()
	fmt.Printf("Geoms:    %d visual, %d collision, %d distinct meshes\n", visuals, collisions, len(meshes))
	fmt.Printf("Warnings: %d\n", len(doc.Warnings))
}

func cmdTree(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: robokit tree <file>")
		os.Exit(1)
	}

	doc := loadDocument(cfg, fs.Arg(0))
	r := doc.Robot

	if r.Root == "" {
		fmt.Fprintln(os.Stderr, "Document has no root link")
		os.Exit(1)
	}

	visited := map[string]bool{r.Root: true}
	fmt.Println(r.Root)
	printSubtree(r, r.Root, "", visited)

	// Links unreachable from the root
	var orphans []string
	for _, id := range r.LinkIDs() {
		if !visited[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		fmt.Printf("\nUnattached: %s\n", strings.Join(orphans, ", "))
	}
}

func printSubtree(r *model.Robot, linkID, prefix string, visited map[string]bool) {
	joints := r.ChildJoints(linkID)
	for i, j := range joints {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(joints)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		fmt.Println(prefix + connector + jointLabel(j))
		if visited[j.Child] {
			continue
		}
		visited[j.Child] = true
		printSubtree(r, j.Child, childPrefix, visited)
	}
}

func jointLabel(j *model.Joint) string {
	desc := j.Type.String()
	if j.Type.DOF() == 1 || j.Type == model.JointPlanar {
		desc += fmt.Sprintf(" %g %g %g", j.Axis[0], j.Axis[1], j.Axis[2])
	}
	if j.Mimic != nil {
		desc += fmt.Sprintf(", mimics %s", j.Mimic.Joint)
	}
	return fmt.Sprintf("%s (%s: %s)", j.Child, j.Name, desc)
}

func cmdConvert(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	format := fs.String("format", "", "Output format: urdf or mjcf (default: by extension)")
	extended := fs.Bool("extended", cfg.Export.Extended, "Emit vendor hardware blocks")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: robokit convert <in> <out> [-format urdf|mjcf] [-extended]")
		os.Exit(1)
	}
	in, out := fs.Arg(0), fs.Arg(1)

	target := *format
	if target == "" {
		target = formatForPath(out, cfg.Export.Format)
	}

	doc := loadDocument(cfg, in)

	var rendered string
	switch target {
	case "urdf":
		rendered = formats.GenerateURDF(doc.Robot, *extended)
	case "mjcf":
		rendered = formats.GenerateMJCF(doc.Robot, *extended)
	default:
		fmt.Fprintf(os.Stderr, "Unsupported output format: %s\n", target)
		os.Exit(1)
	}

	if err := os.WriteFile(out, []byte(rendered), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%s, %d links, %d joints)\n", out, target, len(doc.Robot.Links), len(doc.Robot.Joints))
}

// formatForPath infers the output dialect from the file extension.
func formatForPath(p, fallback string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".urdf":
		return "urdf"
	case ".mjcf":
		return "mjcf"
	}
	return fallback
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func cmdPose(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("pose", flag.ExitOnError)
	var sets multiFlag
	fs.Var(&sets, "set", "Joint assignment joint=v[,v,...] (repeatable)")
	ignoreLimits := fs.Bool("ignore-limits", false, "Skip revolute/prismatic limit clamping")
	fs.Parse(args)

	if fs.NArg() < 1 || len(sets) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: robokit pose <file> -set joint=v[,v,...] [-ignore-limits]")
		os.Exit(1)
	}

	doc := loadDocument(cfg, fs.Arg(0))
	r := doc.Robot
	before, err := r.Clone()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, arg := range sets {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "Bad -set value %q, want joint=v[,v,...]\n", arg)
			os.Exit(1)
		}
		j := r.Joint(name)
		if j == nil {
			fmt.Fprintf(os.Stderr, "Unknown joint: %s\n", name)
			os.Exit(1)
		}
		var values []float64
		for _, field := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Bad value %q for joint %s\n", field, name)
				os.Exit(1)
			}
			values = append(values, v)
		}
		if *ignoreLimits {
			j.IgnoreLimits = true
		}
		if r.SetJointValue(name, values...) {
			fmt.Printf("%s = %v\n", name, values)
		} else {
			fmt.Printf("%s = %v (no change)\n", name, values)
		}
	}

	// Report links whose world transform moved
	moved := 0
	for _, id := range r.LinkIDs() {
		after, ok := r.WorldTransform(id)
		if !ok {
			continue
		}
		orig, _ := before.WorldTransform(id)
		if after == orig {
			continue
		}
		fmt.Printf("  %s -> (%.4g, %.4g, %.4g)\n", id, after[12], after[13], after[14])
		moved++
	}
	if moved == 0 {
		fmt.Println("No links moved")
	}
}

func cmdAssets(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("assets", flag.ExitOnError)
	dir := fs.String("dir", "", "Asset directory to index")
	probe := fs.Bool("probe", false, "Probe texture dimensions")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: robokit assets <file> -dir <path> [-probe]")
		os.Exit(1)
	}

	dirs := cfg.Assets.Dirs
	if *dir != "" {
		dirs = []string{*dir}
	}
	if len(dirs) == 0 {
		fmt.Fprintln(os.Stderr, "No asset directories; pass -dir or configure assets.dirs")
		os.Exit(1)
	}

	files := map[string][]byte{}
	for _, d := range dirs {
		if err := readAssetDir(d, files); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", d, err)
			os.Exit(1)
		}
	}

	doc := loadDocument(cfg, fs.Arg(0))
	index := assets.BuildIndex(files)
	loader := assets.NewLoader(index)
	if !cfg.Assets.AutoScale {
		loader.Scale().Disable()
	}
	baseDir := filepath.Dir(fs.Arg(0))

	fmt.Printf("Indexed %d assets from %s\n\n", index.Len(), strings.Join(dirs, ", "))

	misses := 0
	for _, id := range doc.Robot.LinkIDs() {
		l := doc.Robot.Links[id]
		for _, g := range []model.Geometry{l.Visual, l.Collision} {
			if g.Shape != model.ShapeMesh || g.MeshPath == "" {
				continue
			}
			res := loader.LoadMesh(g.MeshPath, baseDir)
			if res.Placeholder {
				fmt.Printf("MISS  %-40s (placeholder)\n", g.MeshPath)
				misses++
				continue
			}
			fmt.Printf("HIT   %-40s -> %s [%s] scale=%g dim=%.3g\n",
				g.MeshPath, res.Ref.Path, res.Strategy, res.Scale, res.Mesh.MaxDimension())
		}
	}

	if sc := loader.Scale(); sc.Locked() && sc.Factor() != 1.0 {
		fmt.Printf("\nUnit scale locked at %g (millimeter source)\n", sc.Factor())
	}
	if misses > 0 {
		fmt.Printf("%d unresolved references\n", misses)
	}

	if *probe {
		fmt.Println()
		for _, p := range index.Paths() {
			if !assets.IsImagePath(p) {
				continue
			}
			ref, _ := index.Resolve(p, "")
			info, err := assets.ProbeImage(p, ref.Data)
			if err != nil {
				fmt.Printf("probe %-40s error: %v\n", p, err)
				continue
			}
			fmt.Printf("probe %-40s %s %dx%d\n", p, info.Format, info.Width, info.Height)
		}
	}
}

// readAssetDir loads every file under root into the bundle map, keyed
// by slash-separated path relative to root.
func readAssetDir(root string, files map[string][]byte) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
}
