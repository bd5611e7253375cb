package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elsanchez/downlodr/internal/config"
	"github.com/elsanchez/downlodr/internal/cookies"
	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/tui/monitor"
	"github.com/elsanchez/downlodr/internal/utils"
	"github.com/elsanchez/downlodr/pkg/client"
)

const (
	version = "0.2.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]

	// cookies no necesita daemon
	if os.Args[1] == "cookies" {
		handleCookies(args)
		return
	}

	// Crear cliente con el socket del config (o el default)
	c := client.NewClient(socketPath())

	switch os.Args[1] {
	case "add":
		handleAdd(c, args)
	case "status":
		handleStatus(c, args)
	case "list":
		handleList(c, args)
	case "history":
		printDownloads(must(c.History()))
	case "stats":
		handleStats(c)
	case "pause":
		eachID(args, "pause", c.Pause)
	case "resume":
		eachID(args, "resume", c.Resume)
	case "stop":
		handleStop(c, args)
	case "stop-all":
		printBatch("Stopped", must(c.StopAll()))
	case "pause-all":
		printBatch("Paused", must(c.PauseAll()))
	case "resume-all":
		printBatch("Resumed", must(c.ResumeAll()))
	case "rm":
		handleRemove(c, args)
	case "history-rm":
		eachID(args, "history-rm", c.RemoveHistory)
	case "history-clear":
		n := must(c.ClearHistory())
		fmt.Printf("✓ %d history entries removed\n", n)
	case "rename":
		handleRename(c, args)
	case "tag", "category":
		handleLabel(c, os.Args[1], args)
	case "labels":
		handleLabels(c)
	case "ceiling":
		handleCeiling(c, args)
	case "notices":
		handleNotices(c)
	case "monitor":
		if err := monitor.Run(c); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("dlr v%s\n", version)
	case "help":
		printUsage()
	default:
		// Si el primer argumento parece una URL, asumir que es "add"
		if strings.HasPrefix(os.Args[1], "http://") || strings.HasPrefix(os.Args[1], "https://") {
			handleAdd(c, os.Args[1:])
		} else {
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}
}

func socketPath() string {
	if path := os.Getenv("DOWNLODR_SOCKET_PATH"); path != "" {
		return path
	}
	cfg, err := config.Load(config.DefaultPath())
	if err != nil || cfg.SocketPath == "" {
		return client.GetDefaultSocketPath()
	}
	return cfg.SocketPath
}

// cookiesDir usa el mismo directorio que el daemon
func cookiesDir() string {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg.CookiesDir()
}

func handleCookies(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: dlr cookies list|import|export")
		os.Exit(1)
	}

	dir := cookiesDir()
	switch args[0] {
	case "list":
		jars, err := cookies.ListJars(dir, time.Now())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(jars) == 0 {
			fmt.Println("No cookie jars")
			return
		}
		for _, jar := range jars {
			fmt.Printf("%-24s %-8s %s\n", jar.Domain, jar.Validation.Status, jar.Validation.Message)
		}

	case "import":
		fs := flag.NewFlagSet("cookies import", flag.ExitOnError)
		domainFlag := fs.String("domain", "", "Domain or URL the jar is for")
		force := fs.Bool("force", false, "Overwrite an existing jar")
		if len(args) < 2 {
			fmt.Println("Usage: dlr cookies import <file> [--domain d] [--force]")
			os.Exit(1)
		}
		fs.Parse(args[2:])

		res, err := cookies.Import(dir, cookies.ImportOptions{
			FilePath: args[1],
			Domain:   *domainFlag,
			Force:    *force,
		}, time.Now())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Imported %d cookies for %s (%s)\n", res.Cookies, res.Domain, res.Validation.Message)

	case "export":
		if len(args) < 3 {
			fmt.Println("Usage: dlr cookies export <domain> <file>")
			os.Exit(1)
		}
		if err := cookies.Export(dir, args[1], args[2]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Exported %s to %s\n", args[1], args[2])

	default:
		fmt.Printf("Unknown cookies command: %s\n", args[0])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`downlodr CLI (dlr) v` + version + `

Usage: dlr <command> [args]

Commands:
  add <url> [options]          Resolve a URL and queue it
  status <id>                  Show one download
  list [collection] [limit]    List queued, active (default), finished or history
  history                      List download history
  stats                        Show queue statistics
  pause <id...>                Pause running downloads
  resume <id...>               Resume paused downloads
  stop <id...>                 Stop and drop queued or active downloads
  stop-all | pause-all | resume-all
  rm <id...> [--delete-file]   Remove downloads (optionally deleting files)
  history-rm <id...>           Remove history entries
  history-clear                Clear history
  rename <id> <name>           Rename a queued download
  tag add|rm <id> <tag>        Tag a download
  tag rename <old> <new>       Rename a tag everywhere
  tag delete <tag>             Delete a tag everywhere
  category ...                 Same as tag, for categories
  labels                       Show tag and category pools
  ceiling <n|unlimited>        Change the concurrency ceiling
  notices                      Show recent notices
  monitor                      Open the terminal monitor
  cookies list                 List cookie jars
  cookies import <file>        Install a Netscape jar [--domain d] [--force]
  cookies export <domain> <f>  Copy a jar out
  version                      Show version
  help                         Show this help

Add Options:
  --location <dir>     Output directory (default from config)
  --rate-limit <rate>  Bandwidth limit, e.g. 500K or 2M
  --tag <tag>          Tag (repeat or comma separated)
  --category <cat>     Category (repeat or comma separated)
  --wait               Wait for metadata before returning

Examples:
  dlr add https://youtube.com/watch?v=xxx --wait
  dlr https://youtube.com/watch?v=xxx          (shorthand for 'add')
  dlr list queued
  dlr rm 0b6f... --delete-file
  dlr tag rename musik music
  dlr ceiling unlimited`)
}

func must[T any](v T, err error) T {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return v
}

// listFlag acumula valores repetidos o separados por coma
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func handleAdd(c *client.Client, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: URL is required")
		printUsage()
		os.Exit(1)
	}

	addFlags := flag.NewFlagSet("add", flag.ExitOnError)
	location := addFlags.String("location", "", "Output directory")
	rateLimit := addFlags.String("rate-limit", "", "Bandwidth limit (e.g. 500K, 2M)")
	wait := addFlags.Bool("wait", false, "Wait for metadata")
	var tags, categories listFlag
	addFlags.Var(&tags, "tag", "Tag (repeatable)")
	addFlags.Var(&categories, "category", "Category (repeatable)")

	// URL es el primer argumento
	url := args[0]
	if len(args) > 1 {
		addFlags.Parse(args[1:])
	}

	dl, err := c.Add(&client.AddPayload{
		URL:        url,
		Location:   *location,
		RateLimit:  *rateLimit,
		Tags:       tags,
		Categories: categories,
		Wait:       *wait,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Download added with ID: %s\n", dl.ID)
	fmt.Printf("  URL: %s\n", dl.URL)
	if *wait {
		fmt.Printf("  Title: %s\n", dl.DisplayName)
		fmt.Printf("  File: %s\n", dl.TargetPath())
		fmt.Printf("  Format: %s (%s)\n", dl.Encoding.Selector(), dl.Encoding.Ext)
	}
	fmt.Printf("  Status: %s\n", dl.Status)
}

func handleStatus(c *client.Client, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: Download ID is required")
		fmt.Println("Usage: dlr status <id>")
		os.Exit(1)
	}

	dl, collection, err := c.Status(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Collection: %s\n", collection)
	printDownload(dl)
}

func handleList(c *client.Client, args []string) {
	collection := "active"
	limit := 0
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			limit = n
			continue
		}
		collection = arg
	}

	downloads, err := c.List(collection, limit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printDownloads(downloads)
}

func printDownloads(downloads []*domain.Download) {
	if len(downloads) == 0 {
		fmt.Println("No downloads found")
		return
	}

	fmt.Printf("Downloads (%d):\n\n", len(downloads))
	for _, dl := range downloads {
		printDownload(dl)
		fmt.Println()
	}
}

func printDownload(dl *domain.Download) {
	fmt.Printf("ID: %s\n", dl.ID)
	fmt.Printf("  Name: %s\n", dl.DisplayName)
	if dl.Platform != "" {
		fmt.Printf("  Platform: %s\n", dl.Platform)
	}
	fmt.Printf("  URL: %s\n", dl.URL)
	fmt.Printf("  Status: %s", dl.Status)
	if dl.Status == domain.StatusDownloading || dl.Status == domain.StatusPaused {
		fmt.Printf(" (%.1f%%", dl.Progress)
		if dl.Speed != "" {
			fmt.Printf(", %s", dl.Speed)
		}
		if dl.ETA != "" {
			fmt.Printf(", ETA %s", dl.ETA)
		}
		fmt.Print(")")
	}
	fmt.Println()

	if dl.FileName != "" {
		fmt.Printf("  Output: %s\n", dl.TargetPath())
	}
	if dl.SizeBytes > 0 {
		fmt.Printf("  Size: %s\n", utils.HumanBytes(dl.SizeBytes))
	}
	if dl.RateLimit != "" {
		fmt.Printf("  Rate limit: %s\n", dl.RateLimit)
	}
	if len(dl.Tags) > 0 {
		fmt.Printf("  Tags: %s\n", strings.Join(dl.Tags, ", "))
	}
	if len(dl.Categories) > 0 {
		fmt.Printf("  Categories: %s\n", strings.Join(dl.Categories, ", "))
	}
	if dl.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", dl.ErrorMessage)
	}
}

func handleStats(c *client.Client) {
	stats, err := c.GetStats()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Queue Statistics:")
	fmt.Println()
	fmt.Printf("  Queued:       %d\n", stats.Queued)
	fmt.Printf("  Active:       %d\n", stats.Active)
	fmt.Printf("  Finished:     %d\n", stats.Finished)
	fmt.Printf("  History:      %d\n", stats.History)
	fmt.Println()
	for _, s := range []domain.DownloadStatus{
		domain.StatusFetchingMetadata, domain.StatusQueued, domain.StatusInitializing,
		domain.StatusDownloading, domain.StatusPaused, domain.StatusFailed, domain.StatusCancelled,
	} {
		if n := stats.ByStatus[string(s)]; n > 0 {
			fmt.Printf("  %-18s %d\n", s+":", n)
		}
	}
	fmt.Println()
	if stats.Unlimited {
		fmt.Printf("  Workers:      %d running (unlimited)\n", stats.Running)
	} else {
		fmt.Printf("  Workers:      %d / %d busy\n", stats.Running, stats.Ceiling)
	}
	fmt.Printf("  Labels:       %d tags, %d categories\n", stats.Tags, stats.Categories)
}

func eachID(args []string, action string, fn func(id string) error) {
	if len(args) == 0 {
		fmt.Printf("Error: at least one ID is required\nUsage: dlr %s <id...>\n", action)
		os.Exit(1)
	}
	failed := false
	for _, id := range args {
		if err := fn(id); err != nil {
			fmt.Printf("✗ %s: %v\n", id, err)
			failed = true
			continue
		}
		fmt.Printf("✓ %s: %s\n", action, id)
	}
	if failed {
		os.Exit(1)
	}
}

func handleStop(c *client.Client, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: at least one ID is required")
		os.Exit(1)
	}
	printBatch("Stopped", must(c.StopSelected(args)))
}

func handleRemove(c *client.Client, args []string) {
	deleteFile := false
	var ids []string
	for _, arg := range args {
		if arg == "--delete-file" || arg == "-delete-file" {
			deleteFile = true
			continue
		}
		ids = append(ids, arg)
	}
	if len(ids) == 0 {
		fmt.Println("Error: at least one ID is required")
		fmt.Println("Usage: dlr rm <id...> [--delete-file]")
		os.Exit(1)
	}
	printBatch("Removed", must(c.RemoveSelected(ids, deleteFile)))
}

func printBatch(verb string, result *domain.BatchResult) {
	fmt.Printf("✓ %s %d download(s)\n", verb, len(result.Succeeded))
	for id, reason := range result.Failed {
		fmt.Printf("  ✗ %s: %s\n", id, reason)
	}
	if len(result.Failed) > 0 {
		os.Exit(1)
	}
}

func handleRename(c *client.Client, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: dlr rename <id> <name>")
		os.Exit(1)
	}
	name := strings.Join(args[1:], " ")
	if err := c.Rename(args[0], name); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Renamed %s to %q\n", args[0], name)
}

func handleLabel(c *client.Client, kind string, args []string) {
	usage := func() {
		fmt.Printf("Usage: dlr %[1]s add|rm <id> <%[1]s> | rename <old> <new> | delete <%[1]s>\n", kind)
		os.Exit(1)
	}
	if len(args) < 2 {
		usage()
	}

	var (
		op      string
		payload client.LabelPayload
	)
	switch args[0] {
	case "add", "rm":
		if len(args) < 3 {
			usage()
		}
		op = "add"
		if args[0] == "rm" {
			op = "remove"
		}
		payload = client.LabelPayload{ID: args[1], Label: strings.Join(args[2:], " ")}
	case "rename":
		if len(args) < 3 {
			usage()
		}
		op = "rename"
		payload = client.LabelPayload{Old: args[1], New: strings.Join(args[2:], " ")}
	case "delete":
		op = "delete"
		payload = client.LabelPayload{Label: strings.Join(args[1:], " ")}
	default:
		usage()
	}

	changed, err := c.Label(kind, op, &payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if op == "rename" || op == "delete" {
		fmt.Printf("✓ %s %s: %d download(s) updated\n", kind, op, changed)
		return
	}
	fmt.Printf("✓ %s %s\n", kind, op)
}

func handleLabels(c *client.Client) {
	tags, categories, err := c.Labels()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Tags (%d): %s\n", len(tags), strings.Join(tags, ", "))
	fmt.Printf("Categories (%d): %s\n", len(categories), strings.Join(categories, ", "))
}

func handleCeiling(c *client.Client, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: dlr ceiling <n|unlimited>")
		os.Exit(1)
	}
	if args[0] == "unlimited" {
		if err := c.SetCeiling(0, true); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Concurrency ceiling removed")
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Printf("Error: Invalid ceiling: %s\n", args[0])
		os.Exit(1)
	}
	if err := c.SetCeiling(n, false); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Concurrency ceiling set to %d\n", n)
}

func handleNotices(c *client.Client) {
	notices, err := c.Notices(0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(notices) == 0 {
		fmt.Println("No notices")
		return
	}
	for _, n := range notices {
		fmt.Printf("[%s] %s %s: %s\n", n.Time.Format("15:04:05"), strings.ToUpper(string(n.Level)), n.Title, n.Message)
	}
}
