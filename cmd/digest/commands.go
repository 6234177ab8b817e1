package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/app"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

// localFlags holds the per-command flags; each command binds its subset.
type localFlags struct {
	original bool
	images   bool
	kind     string
	asJSON   bool
	format   string
	output   string
	purge    string
}

type env struct {
	app    *app.App
	args   []string
	flags  *localFlags
	common *commonFlags
	fs     *flag.FlagSet
	out    io.Writer
}

type command struct {
	flags func(fs *flag.FlagSet) *localFlags
	run   func(ctx context.Context, e *env) error
}

var commands = map[string]command{
	"save": {
		flags: func(fs *flag.FlagSet) *localFlags {
			l := &localFlags{}
			fs.BoolVar(&l.original, "original", true, "Keep the extracted text and HTML with the article")
			fs.BoolVar(&l.images, "images", true, "Keep <img> and <figure> elements in saved HTML")
			return l
		},
		run: runSave,
	},
	"list": {
		flags: func(fs *flag.FlagSet) *localFlags {
			l := &localFlags{}
			fs.StringVar(&l.kind, "type", "", "Only list one type: webpage, video, video-bilibili, video-youtube or document-pdf")
			fs.BoolVar(&l.asJSON, "json", false, "Print articles as JSON")
			return l
		},
		run: runList,
	},
	"tag":    {flags: noFlags, run: runTag},
	"delete": {flags: noFlags, run: runDelete},
	"export": {
		flags: func(fs *flag.FlagSet) *localFlags {
			l := &localFlags{}
			fs.StringVar(&l.format, "format", "md", "Export format: md or pdf")
			fs.StringVar(&l.output, "o", "", "Output path; Markdown defaults to stdout, PDF to a file named after the title")
			return l
		},
		run: runExport,
	},
	"serve": {
		flags: func(fs *flag.FlagSet) *localFlags {
			l := &localFlags{}
			fs.StringVar(&l.purge, "cache.purge", "@every 1h", "Cron schedule for purging expired cache entries")
			return l
		},
		run: runServe,
	},
}

func noFlags(*flag.FlagSet) *localFlags { return &localFlags{} }

func runSave(ctx context.Context, e *env) error {
	if len(e.args) == 0 {
		return usagef("save needs at least one URL")
	}
	var opts app.SaveOptions
	e.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "original":
			v := e.flags.original
			opts.SaveOriginalContent = &v
		case "images":
			v := e.flags.images
			opts.SaveImages = &v
		}
	})
	for _, u := range e.args {
		start := time.Now()
		art, err := e.app.SaveURL(ctx, u, opts)
		if err != nil {
			return fmt.Errorf("save %s: %w", u, err)
		}
		log.Debug().Str("url", u).Dur("took", time.Since(start)).Msg("saved")
		fmt.Fprintf(e.out, "%s\t%s\t%s\n", art.ID, art.Type, art.Title)
	}
	return nil
}

func runList(ctx context.Context, e *env) error {
	list, err := e.app.List(ctx)
	if err != nil {
		return err
	}
	if k := strings.TrimSpace(e.flags.kind); k != "" {
		list = store.FilterType(list, k)
	}
	if e.flags.asJSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSAVED\tTITLE\tTAGS")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Type, a.DateAdded.Local().Format("2006-01-02 15:04"), a.Title, strings.Join(a.Tags, ","))
	}
	return tw.Flush()
}

func runTag(ctx context.Context, e *env) error {
	if len(e.args) < 1 {
		return usagef("usage: digest tag <id> [tag...]")
	}
	art, err := e.app.UpdateTags(ctx, e.args[0], e.args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s\t%s\n", art.ID, strings.Join(art.Tags, ","))
	return nil
}

func runDelete(ctx context.Context, e *env) error {
	if len(e.args) != 1 {
		return usagef("usage: digest delete <id>")
	}
	if err := e.app.Delete(ctx, e.args[0]); err != nil {
		return err
	}
	log.Info().Str("id", e.args[0]).Msg("article deleted")
	return nil
}

func runExport(ctx context.Context, e *env) error {
	if len(e.args) != 1 {
		return usagef("usage: digest export [-format md|pdf] [-o path] <id>")
	}
	art, err := e.app.Get(ctx, e.args[0])
	if err != nil {
		return err
	}
	var (
		data []byte
		ext  = e.flags.format
	)
	switch ext {
	case "md", "markdown":
		ext = "md"
		data = []byte(app.ExportMarkdown(art))
		if e.flags.output == "" {
			_, err := e.out.Write(data)
			return err
		}
	case "pdf":
		var buf bytes.Buffer
		if err := app.ExportPDF(art, e.app.Config().PDFFontPath, &buf); err != nil {
			return fmt.Errorf("render pdf: %w", err)
		}
		data = buf.Bytes()
	default:
		return usagef("unsupported format %q", e.flags.format)
	}
	path := e.flags.output
	if path == "" {
		path = app.ExportFileName(art, ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintln(e.out, path)
	return nil
}
