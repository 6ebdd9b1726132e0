package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pdfcrawler/internal/config"
	"pdfcrawler/internal/crawler"
)

func main() {
	cfgPath := flag.String("config", "", "Path to crawler configuration file (optional)")
	seed := flag.String("url", "", "Seed URL to crawl")
	scope := flag.String("scope", "", "Crawl scope: page, host, or domain")
	render := flag.String("render", "", "Render mode: auto, always, or never")
	maxPages := flag.Int("max-pages", 0, "Maximum pages to visit")
	maxPDFs := flag.Int("max-pdfs", 0, "Maximum PDFs to download")
	delay := flag.Duration("delay", -1, "Delay between requests")
	respectRobots := flag.Bool("robots", true, "Respect robots.txt")
	outDir := flag.String("out", "", "Output directory for downloaded PDFs")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	if *seed != "" {
		cfg.Crawl.Seed = *seed
	}
	if *scope != "" {
		cfg.Crawl.Scope = *scope
	}
	if *render != "" {
		cfg.Rendering.Mode = *render
	}
	if *maxPages > 0 {
		cfg.Crawl.MaxPages = *maxPages
	}
	if *maxPDFs > 0 {
		cfg.Crawl.MaxPDFs = *maxPDFs
	}
	if *delay >= 0 {
		cfg.Crawl.Delay = config.DurationFrom(*delay)
	}
	cfg.Crawl.RespectRobots = *respectRobots
	if *outDir != "" {
		cfg.Output.Directory = *outDir
	}

	crawl, err := crawler.Start(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start crawl: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		crawl.Cancel()
	}()

	exitCode := 0
	for ev := range crawl.Events() {
		switch ev := ev.(type) {
		case crawler.LogMessage:
			fmt.Println(ev.Text)
		case crawler.PdfFound:
			fmt.Printf("found PDF (%s): %s\n", ev.Signal, ev.URL)
		case crawler.PdfSaved:
			fmt.Printf("saved %s (%s)\n", ev.Path, formatBytes(ev.SizeBytes))
		case crawler.Warning:
			fmt.Printf("warning: %s\n", ev.Text)
		case crawler.ErrorEvent:
			fmt.Fprintf(os.Stderr, "error [%s] %s: %v\n", ev.Kind, ev.URL, ev.Err)
		case crawler.Finished:
			fmt.Printf("finished (%s): %d pages visited, %d PDFs saved\n",
				ev.Reason, ev.PagesVisited, ev.PdfsSaved)
			if ev.Reason == crawler.ReasonCancelled {
				exitCode = 130
			}
		}
	}
	os.Exit(exitCode)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
