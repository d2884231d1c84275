// Package driver compiles many views at once: it wires the catalog, the
// resolver and the view compiler from a configuration, runs views in
// parallel, reports progress and keeps a disk cache of generated files.
package driver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viewc/internal/catalog"
	"viewc/internal/codegen"
	"viewc/internal/config"
	"viewc/internal/diag"
	"viewc/internal/observ"
	"viewc/internal/resolver"
	"viewc/internal/source"
	"viewc/internal/tree"
	"viewc/internal/version"
	"viewc/internal/viewcompiler"
	"viewc/runtime/objref"
)

// Options configures New.
type Options struct {
	// Config defaults to config.Default.
	Config *config.Config
	// Jobs limits parallel compilations; 0 means GOMAXPROCS.
	Jobs int
	// Cache is optional.
	Cache *DiskCache
	Sink  ProgressSink
	// Objects, when set, receives the bindings of compiled views and the
	// generated code reads them back from objref.Default: such units only
	// run inside this process and Write refuses them. When nil, bindings
	// are constructed by the generated code itself.
	Objects *objref.Table
}

// Driver compiles the views below the configured root.
type Driver struct {
	cfg      *config.Config
	opts     Options
	root     string
	files    *source.FileSet
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	compiler *viewcompiler.Compiler
	aliases  *codegen.AliasCounter

	fingerprint Digest
}

// ViewResult is the outcome of compiling one view.
type ViewResult struct {
	// Path is the virtual path of the view.
	Path      string
	ClassName string
	Source    []byte
	// Unit is nil for cached results.
	Unit   *codegen.CompilationUnit
	Cached bool
	Err    error
	Timing observ.Report
}

// Result collects the view results in input order.
type Result struct {
	Views  []ViewResult
	Timing observ.Report
}

// Failed counts the views that did not compile.
func (r *Result) Failed() int {
	n := 0
	for i := range r.Views {
		if r.Views[i].Err != nil {
			n++
		}
	}
	return n
}

// Err joins the errors of all failed views.
func (r *Result) Err() error {
	var errs []error
	for i := range r.Views {
		if r.Views[i].Err != nil {
			errs = append(errs, r.Views[i].Err)
		}
	}
	return errors.Join(errs...)
}

// New builds the compilation pipeline described by opts.Config.
func New(opts Options) (*Driver, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	for _, r := range cfg.Markup.Controls {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	root := cfg.Compile.Root
	if root == "" {
		root = "."
	}
	if opts.Jobs <= 0 {
		opts.Jobs = cfg.Compile.Jobs
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}

	files := source.NewFileSet(root)
	cat, err := catalog.New(nil, files, root)
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(resolver.Options{
		Rules:       cfg.Markup.Controls,
		Locator:     cat,
		Builder:     cat,
		HTMLControl: cat.HTMLControl(),
	})
	if err != nil {
		return nil, err
	}
	aliases := &codegen.AliasCounter{}
	d := &Driver{
		cfg:      cfg,
		opts:     opts,
		root:     root,
		files:    files,
		catalog:  cat,
		resolver: res,
		aliases:  aliases,
		compiler: viewcompiler.New(viewcompiler.Options{
			Resolver:       res,
			Catalog:        cat,
			Package:        cfg.Compile.Package,
			Aliases:        aliases,
			Objects:        opts.Objects,
			InlineBindings: opts.Objects == nil,
		}),
	}
	d.fingerprint = d.computeFingerprint()
	return d, nil
}

// Resolver exposes the resolver the driver compiles with.
func (d *Driver) Resolver() *resolver.Resolver { return d.resolver }

// Catalog exposes the control catalog.
func (d *Driver) Catalog() *catalog.Catalog { return d.catalog }

// WithSink returns a driver sharing d's caches that reports to sink.
func (d *Driver) WithSink(sink ProgressSink) *Driver {
	c := *d
	c.opts.Sink = sink
	return &c
}

// Root is the directory virtual paths are relative to.
func (d *Driver) Root() string { return d.root }

// computeFingerprint hashes everything besides the view itself that its
// generated file depends on. Markup control sources are included because
// pages embed their base and data context types.
func (d *Driver) computeFingerprint() Digest {
	h := sha256.New()
	fmt.Fprintf(h, "viewc %s\x00%s\x00", version.Number, d.cfg.Compile.Package)
	for _, r := range d.cfg.Markup.Controls {
		h.Write([]byte(r.String()))
		h.Write([]byte{0})
		if r.Src == "" {
			continue
		}
		// #nosec G304 -- src comes from the project configuration
		if data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(r.Src))); err == nil {
			sum := sha256.Sum256(data)
			h.Write(sum[:])
		}
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// ListViews returns the virtual paths of all view files below the root,
// sorted. Hidden directories and the output directory are skipped.
func (d *Driver) ListViews() ([]string, error) {
	out := filepath.Clean(d.cfg.Compile.Out)
	var views []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if p != d.root && (strings.HasPrefix(entry.Name(), ".") || filepath.Clean(p) == out) {
				return filepath.SkipDir
			}
			return nil
		}
		if !tree.IsViewFile(p) {
			return nil
		}
		rel, err := source.RelativePath(p, d.root)
		if err != nil {
			return err
		}
		views = append(views, rel)
		return nil
	})
	if err != nil {
		return nil, diag.Wrap(diag.IOLoadFileError, d.root, err, "list views")
	}
	sort.Strings(views)
	return views, nil
}

func (d *Driver) emit(evt Event) {
	if d.opts.Sink != nil {
		d.opts.Sink.OnEvent(evt)
	}
}

// Compile compiles the given virtual paths in parallel. A failing view
// only fails its own result; the returned error is set when ctx ends.
func (d *Driver) Compile(ctx context.Context, paths []string) (*Result, error) {
	timer := observ.NewTimer()
	phase := timer.Begin("compile")

	result := &Result{Views: make([]ViewResult, len(paths))}
	for _, p := range paths {
		d.emit(Event{File: p, Stage: StageLoad, Status: StatusQueued})
	}
	if len(paths) == 0 {
		timer.End(phase, "no views")
		result.Timing = timer.Report()
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(d.opts.Jobs, len(paths)))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				result.Views[i] = ViewResult{Path: p, Err: err}
				return err
			}
			// индекс i уникален для горутины, мьютекс не нужен
			result.Views[i] = d.compileView(p)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		d.checkNames(result)
	}

	cached := 0
	for i := range result.Views {
		if result.Views[i].Cached {
			cached++
		}
	}
	timer.End(phase, fmt.Sprintf("%d views, %d cached, %d failed", len(paths), cached, result.Failed()))
	result.Timing = timer.Report()
	Logger().Debug("compile finished",
		zap.Int("views", len(paths)),
		zap.Int("cached", cached),
		zap.Int("failed", result.Failed()),
		zap.Float64("total_ms", result.Timing.TotalMS))
	return result, err
}

// checkNames fails every view whose builder type or output file clashes
// with an earlier view of the same build; the generated package could not
// hold both.
func (d *Driver) checkNames(result *Result) {
	classes := make(map[string]string)
	files := make(map[string]string)
	for i := range result.Views {
		v := &result.Views[i]
		if v.Err != nil {
			continue
		}
		var err error
		file := OutputName(v.Path)
		if first, ok := classes[v.ClassName]; ok {
			err = diag.Errorf(diag.EmitDuplicateName, v.ClassName,
				"views %s and %s both generate the builder %s; rename one of them", first, v.Path, v.ClassName)
		} else if first, ok := files[file]; ok {
			err = diag.Errorf(diag.EmitDuplicateName, file,
				"views %s and %s both generate the file %s; rename one of them", first, v.Path, file)
		}
		if err != nil {
			v.Err = diag.Locate(err, diag.Location{File: v.Path})
			d.emit(Event{File: v.Path, Stage: StageCompile, Status: StatusError, Err: v.Err})
			continue
		}
		classes[v.ClassName] = v.Path
		files[file] = v.Path
	}
}

func (d *Driver) compileView(p string) (res ViewResult) {
	p = path.Clean(filepath.ToSlash(p))
	res.Path = p
	timer := observ.NewTimer()
	started := time.Now()
	stage := StageLoad
	defer func() {
		res.Timing = timer.Report()
		status := StatusDone
		switch {
		case res.Err != nil:
			status = StatusError
			Logger().Debug("view failed", zap.String("path", p), zap.Error(res.Err))
		case res.Cached:
			status = StatusCached
		}
		d.emit(Event{File: p, Stage: stage, Status: status, Err: res.Err, Elapsed: time.Since(started)})
	}()
	enter := func(s Stage) int {
		stage = s
		d.emit(Event{File: p, Stage: s, Status: StatusWorking})
		return timer.Begin(string(s))
	}

	idx := enter(StageLoad)
	id, err := d.files.Load(filepath.Join(d.root, filepath.FromSlash(p)))
	timer.End(idx, "")
	if err != nil {
		res.Err = diag.Wrap(diag.IOLoadFileError, p, err, "load view").At(diag.Location{File: p})
		return res
	}
	f, _ := d.files.Get(id)
	key := cacheKey(d.fingerprint, f.VirtualPath, Digest(f.Hash))
	if d.opts.Cache != nil {
		var payload DiskPayload
		hit, err := d.opts.Cache.Get(key, &payload)
		if err != nil {
			Logger().Warn("disk cache read failed", zap.String("path", p), zap.Error(err))
		} else if hit && payload.ContentHash == Digest(f.Hash) {
			res.ClassName = payload.ClassName
			res.Source = payload.Source
			res.Cached = true
			return res
		}
	}

	idx = enter(StageParse)
	v, err := tree.Load(d.files, id)
	timer.End(idx, "")
	if err != nil {
		res.Err = err
		return res
	}

	idx = enter(StageCompile)
	unit, err := d.compiler.Compile(v)
	timer.End(idx, "")
	if err != nil {
		res.Err = err
		return res
	}
	res.Unit = unit
	res.ClassName = unit.ClassName

	idx = enter(StageFormat)
	src, err := unit.Source()
	timer.End(idx, fmt.Sprintf("%d bytes", len(src)))
	if err != nil {
		res.Err = err
		return res
	}
	res.Source = src

	// units referencing the object table only make sense in this process
	if d.opts.Cache != nil && unit.ObjectRefs == 0 {
		err := d.opts.Cache.Put(key, &DiskPayload{
			Schema:      diskCacheSchemaVersion,
			Path:        p,
			Package:     unit.Package,
			ClassName:   unit.ClassName,
			ContentHash: Digest(f.Hash),
			Source:      src,
		})
		if err != nil {
			Logger().Warn("disk cache write failed", zap.String("path", p), zap.Error(err))
		}
	}
	return res
}

// OutputName is the file name a view's generated source is written to.
func OutputName(virtualPath string) string {
	p := strings.TrimSuffix(virtualPath, path.Ext(virtualPath))
	p = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(p)
	return p + ".go"
}

// Write stores the generated files of all successful views in dir and
// returns the written paths.
func (d *Driver) Write(result *Result, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, diag.Wrap(diag.IOWriteError, dir, err, "create output directory")
	}
	var (
		written []string
		errs    []error
	)
	for i := range result.Views {
		v := &result.Views[i]
		if v.Err != nil {
			continue
		}
		if v.Unit != nil && v.Unit.ObjectRefs > 0 {
			err := diag.Errorf(diag.EmitProcessLocal, v.Path,
				"view %s reads %d values from the compiler's object table; compile it with inline bindings to write it",
				v.Path, v.Unit.ObjectRefs).At(diag.Location{File: v.Path})
			d.emit(Event{File: v.Path, Stage: StageWrite, Status: StatusError, Err: err})
			errs = append(errs, err)
			continue
		}
		started := time.Now()
		d.emit(Event{File: v.Path, Stage: StageWrite, Status: StatusWorking})
		target := filepath.Join(dir, OutputName(v.Path))
		if err := os.WriteFile(target, v.Source, 0o600); err != nil {
			err = diag.Wrap(diag.IOWriteError, target, err, "write %s", v.Path)
			d.emit(Event{File: v.Path, Stage: StageWrite, Status: StatusError, Err: err, Elapsed: time.Since(started)})
			errs = append(errs, err)
			continue
		}
		d.emit(Event{File: v.Path, Stage: StageWrite, Status: StatusDone, Elapsed: time.Since(started)})
		written = append(written, target)
	}
	return written, errors.Join(errs...)
}
