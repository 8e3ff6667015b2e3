// Command msgqctl is a local operator tool for inspecting and
// exercising a msgq deployment: "status" prints the resolved backend
// configuration, and "monitor" renders a channel's ring state live.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/NorthFat/msgq/backend"
	"github.com/NorthFat/msgq/internal/shm"
	"github.com/gosuri/uilive"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sugawarayuuta/sonnet"
)

// fileConfig is the optional on-disk defaults file for msgqctl monitor,
// layered under its command-line flags the way AlephTX's feeder config
// layers a TOML file under its runtime settings: a flag left at its
// default takes the file's value.
type fileConfig struct {
	Endpoint    string `toml:"endpoint"`
	Prefix      string `toml:"prefix"`
	SegmentSize uint64 `toml:"segment_size"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func main() {
	_ = godotenv.Load() // optional .env; absence is not an error

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: msgqctl <status|monitor> [flags]")
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "status":
		runStatus(args)
	case "monitor":
		runMonitor(args)
	default:
		fmt.Fprintf(os.Stderr, "msgqctl: unknown command %q\n", cmd)
		os.Exit(2)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print as JSON")
	fs.Parse(args)

	cfg := backend.ResolveConfig()
	kind := cfg.Kind()

	if *asJSON {
		out := map[string]any{
			"kind":        kind.String(),
			"prefix":      cfg.Prefix,
			"fake_prefix": cfg.FakePrefix,
			"use_network": cfg.UseNetwork,
			"use_fake":    cfg.UseFake,
		}
		b, err := sonnet.Marshal(out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "msgqctl: marshal status: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}

	fmt.Printf("backend:     %s\n", kind)
	fmt.Printf("prefix:      %q\n", cfg.Prefix)
	fmt.Printf("fake_prefix: %q\n", cfg.FakePrefix)
}

func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	endpoint := fs.String("endpoint", "example", "channel name")
	prefix := fs.String("prefix", "", "namespace prefix under /dev/shm")
	configPath := fs.String("config", "", "optional TOML defaults file")
	fs.Parse(args)

	fc, err := loadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "msgqctl: config: %v\n", err)
		os.Exit(1)
	}
	if *endpoint == "example" && fc.Endpoint != "" {
		*endpoint = fc.Endpoint
	}
	if *prefix == "" && fc.Prefix != "" {
		*prefix = fc.Prefix
	}
	segmentSize := fc.SegmentSize

	seg, err := shm.OpenOrCreateSegment(backend.DefaultRoot+pathJoin(*prefix)+"/msgq_"+*endpoint, segOrDefault(segmentSize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "msgqctl: open segment: %v\n", err)
		os.Exit(1)
	}
	defer seg.Close()

	w := uilive.New()
	w.Start()
	defer w.Stop()

	lines := make([]*uilive.Writer, 4)
	for i := range lines {
		lines[i] = w.Newline()
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		h := seg.Header()
		wc := h.WriteCursorLoad()
		fmt.Fprintf(lines[0], "channel:       %s\n", *endpoint)
		fmt.Fprintf(lines[1], "write cursor:  cycle=%d offset=%d\n", wc.Cycle(), wc.Offset())
		fmt.Fprintf(lines[2], "num readers:   %d\n", h.NumReadersLoad())
		fmt.Fprintf(lines[3], "dropped:       %d\n", h.DroppedLoad())
	}
}

func pathJoin(prefix string) string {
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

func segOrDefault(size uint64) uint64 {
	if size == 0 {
		return shm.DefaultSegmentSize
	}
	return size
}
