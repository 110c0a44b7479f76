package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/app"
	"github.com/justyntemme/solstice/internal/bridge"
	"github.com/justyntemme/solstice/internal/config"
	"github.com/justyntemme/solstice/internal/fs"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/metrics"
	"github.com/justyntemme/solstice/internal/rename"
	"github.com/justyntemme/solstice/internal/search"
	"github.com/justyntemme/solstice/internal/trash"
)

var errUsage = errors.New("usage")

var stdout io.Writer = os.Stdout

// emit prints v as indented JSON when -json is set, otherwise calls text.
func (e *env) emit(v any, text func(w io.Writer)) error {
	if e.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func subFlags(name string) *flag.FlagSet {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	return fset
}

func printEntries(w io.Writer, entries []fs.Entry) {
	for _, en := range entries {
		size := humanize.IBytes(uint64(en.Size))
		name := en.Name
		if en.IsDir {
			size = "-"
			name += "/"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", size, humanize.Time(en.ModTime), name)
	}
}

func runList(e *env, args []string) error {
	dir := "."
	switch len(args) {
	case 0:
	case 1:
		dir = args[0]
	default:
		return errUsage
	}
	entries, err := e.svc.ListDirectory(dir)
	if err != nil {
		return err
	}
	return e.emit(entries, func(w io.Writer) { printEntries(w, entries) })
}

func printHits(w io.Writer, res app.SearchResult) {
	for _, h := range res.Results {
		fmt.Fprintf(w, "%s\t%s\n", h.MatchType, h.Path)
	}
	fmt.Fprintf(w, "%s results\t(%s)\n", humanize.Comma(int64(len(res.Results))), res.Outcome)
}

func runSearch(e *env, args []string) error {
	fset := subFlags("search")
	kind := fset.String("kind", "all", "")
	if err := fset.Parse(args); err != nil || fset.NArg() != 2 {
		return errUsage
	}
	res, err := e.svc.Search(e.ctx, fset.Arg(0), fset.Arg(1), search.ParseKind(*kind))
	if err != nil {
		return err
	}
	return e.emit(res, func(w io.Writer) { printHits(w, res) })
}

func runFind(e *env, args []string) error {
	fset := subFlags("find")
	opts := search.Options{}
	kind := fset.String("kind", "all", "")
	fset.StringVar(&opts.Extension, "ext", "", "")
	fset.BoolVar(&opts.SearchContent, "content", false, "")
	fset.BoolVar(&opts.UseRegex, "regex", false, "")
	fset.StringVar(&opts.DateFrom, "from", "", "")
	fset.StringVar(&opts.DateTo, "to", "", "")
	minSize := fset.String("min", "", "")
	maxSize := fset.String("max", "", "")
	if err := fset.Parse(args); err != nil || fset.NArg() < 1 || fset.NArg() > 2 {
		return errUsage
	}
	opts.Root = fset.Arg(0)
	opts.Query = fset.Arg(1)
	opts.Kind = search.ParseKind(*kind)

	for _, b := range []struct {
		in  string
		out **int64
	}{{*minSize, &opts.SizeMin}, {*maxSize, &opts.SizeMax}} {
		if b.in == "" {
			continue
		}
		n, err := search.ParseSize(b.in)
		if err != nil {
			return err
		}
		*b.out = &n
	}

	res, err := e.svc.AdvancedSearch(e.ctx, opts)
	if err != nil {
		return err
	}
	return e.emit(res, func(w io.Writer) { printHits(w, res) })
}

func runSize(e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	size, err := e.svc.FolderSize(e.ctx, args[0])
	if err != nil {
		return err
	}
	return e.emit(map[string]int64{"size": size}, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\n", humanize.IBytes(uint64(size)), args[0])
	})
}

func runStats(e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	st, err := e.svc.FolderStats(e.ctx, args[0])
	if err != nil {
		return err
	}
	return e.emit(st, func(w io.Writer) {
		fmt.Fprintf(w, "size\t%s\n", humanize.IBytes(uint64(st.TotalSize)))
		fmt.Fprintf(w, "files\t%s\n", humanize.Comma(st.FileCount))
		fmt.Fprintf(w, "folders\t%s\n", humanize.Comma(st.FolderCount))
	})
}

func runProps(e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := e.svc.ItemProperties(args[0])
	if err != nil {
		return err
	}
	return e.emit(p, func(w io.Writer) {
		fmt.Fprintf(w, "path\t%s\n", p.Path)
		fmt.Fprintf(w, "size\t%s (%s bytes)\n", humanize.IBytes(uint64(p.Size)), humanize.Comma(p.Size))
		fmt.Fprintf(w, "mode\t%s\n", p.Mode)
		fmt.Fprintf(w, "created\t%s\n", p.Created.Format(time.RFC3339))
		fmt.Fprintf(w, "modified\t%s\n", p.ModTime.Format(time.RFC3339))
		fmt.Fprintf(w, "accessed\t%s\n", p.Accessed.Format(time.RFC3339))
	})
}

func runCat(e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	content, err := e.svc.ReadFileContent(args[0])
	if err != nil {
		return err
	}
	if e.json {
		return e.emit(map[string]string{"content": content}, nil)
	}
	_, err = io.WriteString(stdout, content)
	return err
}

func runThumb(e *env, args []string) error {
	fset := subFlags("thumb")
	out := fset.String("o", "", "")
	if err := fset.Parse(args); err != nil || fset.NArg() != 1 {
		return errUsage
	}
	url, err := e.svc.Thumbnail(fset.Arg(0))
	if err != nil {
		return err
	}
	if *out == "" {
		return e.emit(map[string]string{"data": url}, func(w io.Writer) { fmt.Fprintln(w, url) })
	}
	_, payload, ok := strings.Cut(url, ",")
	if !ok {
		return fmt.Errorf("thumbnail: unexpected data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	return os.WriteFile(*out, data, 0o644)
}

func runTransfer(e *env, args []string, move bool) error {
	if len(args) < 2 {
		return errUsage
	}
	sources, dst := args[:len(args)-1], args[len(args)-1]
	transfer := e.svc.CopyItems
	if move {
		transfer = e.svc.MoveItems
	}
	done, err := transfer(sources, dst)
	if printErr := e.emit(done, func(w io.Writer) {
		for _, t := range done {
			fmt.Fprintf(w, "%s\t->\t%s\n", t.Source, t.Target)
		}
	}); printErr != nil {
		return printErr
	}
	return err
}

func runCopy(e *env, args []string) error { return runTransfer(e, args, false) }
func runMove(e *env, args []string) error { return runTransfer(e, args, true) }

func runRename(e *env, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	newPath, err := e.svc.RenameItem(args[0], args[1])
	if err != nil {
		return err
	}
	return e.emit(map[string]string{"newPath": newPath}, func(w io.Writer) { fmt.Fprintln(w, newPath) })
}

func runCreate(e *env, args []string, create func(parent, name string) (string, error)) error {
	if len(args) != 2 {
		return errUsage
	}
	path, err := create(args[0], args[1])
	if err != nil {
		return err
	}
	return e.emit(map[string]string{"path": path}, func(w io.Writer) { fmt.Fprintln(w, path) })
}

func runMkdir(e *env, args []string) error { return runCreate(e, args, e.svc.CreateFolder) }
func runTouch(e *env, args []string) error { return runCreate(e, args, e.svc.CreateFile) }

func runRemove(e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	items, err := e.svc.DeleteItems(args)
	if printErr := e.emit(items, func(w io.Writer) {
		for _, it := range items {
			fmt.Fprintf(w, "trashed\t%s\n", it.OriginalPath)
		}
	}); printErr != nil {
		return printErr
	}
	return err
}

func runBatchRename(e *env, args []string) error {
	fset := subFlags("batch-rename")
	raw := fset.String("strategy", "", "")
	apply := fset.Bool("apply", false, "")
	if err := fset.Parse(args); err != nil || *raw == "" || fset.NArg() == 0 {
		return errUsage
	}
	strategy, err := rename.DecodeStrategy([]byte(*raw))
	if err != nil {
		return err
	}

	printPreview := func(w io.Writer, p rename.Preview) {
		for _, it := range p.Items {
			if it.Changed {
				fmt.Fprintf(w, "%s\t->\t%s\n", it.OldName, it.NewName)
			}
		}
		for _, c := range p.Conflicts {
			fmt.Fprintf(w, "conflict\t%s\t%s\n", c.Name, c.Reason)
		}
	}

	if !*apply {
		p, err := e.svc.PreviewRename(fset.Args(), strategy)
		if err != nil {
			return err
		}
		return e.emit(p, func(w io.Writer) { printPreview(w, p) })
	}

	p, res, err := e.svc.ApplyRename(e.ctx, fset.Args(), strategy)
	if printErr := e.emit(map[string]any{"preview": p, "count": res.Count}, func(w io.Writer) {
		printPreview(w, p)
		fmt.Fprintf(w, "renamed\t%d\n", res.Count)
		for _, err := range res.Errors {
			fmt.Fprintf(w, "error\t%v\n", err)
		}
	}); printErr != nil {
		return printErr
	}
	return err
}

func runDrives(e *env, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	drives := e.svc.Drives()
	return e.emit(drives, func(w io.Writer) {
		for _, d := range drives {
			fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Path)
		}
	})
}

func runSpecial(e *env, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	folders := e.svc.SpecialFolders()
	return e.emit(folders, func(w io.Writer) {
		names := make([]string, 0, len(folders))
		for name := range folders {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, folders[name])
		}
	})
}

func runTags(e *env, args []string) error {
	switch len(args) {
	case 0:
		all, err := e.svc.AllTags()
		if err != nil {
			return err
		}
		return e.emit(all, func(w io.Writer) {
			paths := make([]string, 0, len(all))
			for p := range all {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Fprintf(w, "%s\t%s\n", p, strings.Join(all[p], ", "))
			}
		})
	case 1:
		paths, err := e.svc.PathsWithTag(args[0])
		if err != nil {
			return err
		}
		return e.emit(paths, func(w io.Writer) {
			for _, p := range paths {
				fmt.Fprintln(w, p)
			}
		})
	}
	return errUsage
}

func runTagEdit(e *env, args []string, edit func(path, tag string) ([]string, error)) error {
	if len(args) != 2 {
		return errUsage
	}
	tags, err := edit(args[0], args[1])
	if err != nil {
		return err
	}
	return e.emit(tags, func(w io.Writer) { fmt.Fprintln(w, strings.Join(tags, ", ")) })
}

func runTag(e *env, args []string) error   { return runTagEdit(e, args, e.svc.AddFileTag) }
func runUntag(e *env, args []string) error { return runTagEdit(e, args, e.svc.RemoveFileTag) }

func runTrash(e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if !trash.IsAvailable() {
		return trash.ErrUnavailable
	}
	if args[0] == "rm" {
		return runTrashRemove(e, args[1:])
	}
	if len(args) != 1 {
		return errUsage
	}
	switch args[0] {
	case "list":
		items, err := trash.List()
		if err != nil {
			return err
		}
		return e.emit(items, func(w io.Writer) {
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.Time(it.DeletedAt), humanize.IBytes(uint64(it.Size)), it.OriginalPath)
			}
		})
	case "empty":
		if err := trash.Empty(); err != nil {
			return err
		}
		logging.Info("trash emptied", zap.String("trash", trash.DisplayName()))
		return nil
	}
	return errUsage
}

// runTrashRemove permanently deletes trashed items by original path or name.
func runTrashRemove(e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	items, err := trash.List()
	if err != nil {
		return err
	}
	for _, want := range args {
		found := false
		for _, it := range items {
			if it.OriginalPath != want && it.Name != want {
				continue
			}
			if err := trash.Delete(it); err != nil {
				return fmt.Errorf("%s: %w", want, err)
			}
			found = true
			fmt.Fprintf(stdout, "deleted\t%s\n", it.OriginalPath)
		}
		if !found {
			return fmt.Errorf("%s: not in %s", want, trash.DisplayName())
		}
	}
	return nil
}

func runConfig(e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	switch args[0] {
	case "path":
		fmt.Fprintln(stdout, e.cfgPath)
		return nil
	case "init":
		backup, err := config.GenerateConfig(e.cfgPath)
		if err != nil {
			return err
		}
		if backup != "" {
			fmt.Fprintf(stdout, "previous config saved to %s\n", backup)
		}
		fmt.Fprintf(stdout, "wrote %s\n", e.cfgPath)
		return nil
	}
	return errUsage
}

func runServe(e *env, args []string) error {
	fset := subFlags("serve")
	addr := fset.String("metrics-addr", e.cfg.Metrics.Addr, "")
	watch := fset.String("watch", "", "")
	if err := fset.Parse(args); err != nil || fset.NArg() != 0 {
		return errUsage
	}

	if *addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics endpoint failed", zap.String("addr", *addr), zap.Error(err))
			}
		}()
		defer srv.Close()
		logging.Info("metrics endpoint listening", zap.String("addr", *addr))
	}

	if *watch != "" {
		if err := e.svc.Watch(*watch); err != nil {
			return err
		}
	}

	logging.Info("bridge serving on stdio")
	err := bridge.NewServer(e.svc, os.Stdout).Serve(e.ctx, os.Stdin)
	if errors.Is(err, e.ctx.Err()) {
		return nil
	}
	return err
}
