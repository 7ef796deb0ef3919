// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package kernel executes notebook cells: it selects the replay history,
// assembles and runs the program, and routes the active cell's output to
// the host.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marcelocantos/codebook/internal/audit"
	"github.com/marcelocantos/codebook/internal/chat"
	"github.com/marcelocantos/codebook/internal/lang"
	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

// Kernel runs cells one at a time. Generated programs live at fixed paths
// under TempDir, so executions are serialized.
type Kernel struct {
	Registry *lang.Registry
	Runner   supervisor.Runner
	Finder   *lang.Finder
	// Chat answers cells in an assistant language. Nil fails such cells.
	Chat    chat.Completer
	TempDir string
	Logger  *zap.Logger
	// Audit, if set, receives a record of every execution.
	Audit *audit.Logger

	mu sync.Mutex
}

// New returns a kernel with the built-in adapters and an OS process runner.
func New(tempDir string, logger *zap.Logger) *Kernel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kernel{
		Registry: lang.Default(),
		Runner:   supervisor.NewExecRunner(logger),
		Finder:   lang.NewFinder(lang.DefaultFinderTTL, logger),
		TempDir:  tempDir,
		Logger:   logger,
	}
}

func (k *Kernel) logger() *zap.Logger {
	if k.Logger == nil {
		return zap.NewNop()
	}
	return k.Logger
}

func (k *Kernel) registry() *lang.Registry {
	if k.Registry == nil {
		k.Registry = lang.Default()
	}
	return k.Registry
}

func (k *Kernel) runner() supervisor.Runner {
	if k.Runner == nil {
		k.Runner = supervisor.NewExecRunner(k.logger())
	}
	return k.Runner
}

func (k *Kernel) finder() *lang.Finder {
	if k.Finder == nil {
		k.Finder = lang.NewFinder(lang.DefaultFinderTTL, k.logger())
	}
	return k.Finder
}

// ExecuteCell runs the code block at h. The returned error is reserved for
// infrastructure failures such as an unwritable temp directory; a cell that
// fails to build or run yields a Failed result and a nil error.
func (k *Kernel) ExecuteCell(ctx context.Context, doc *notebook.Document, h notebook.Handle, sink Sink) (*Result, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if sink == nil {
		sink = Discard
	}
	sel, err := notebook.Select(doc, h)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Handle:   h,
		Language: sel.Language(),
		Started:  time.Now(),
	}
	log := k.logger().With(
		zap.String("run_id", res.RunID),
		zap.String("language", res.Language),
		zap.Int("cell", int(h)))
	log.Debug("execution started", zap.Int("history", len(sel.Prefix)))

	err = k.execute(ctx, doc, sel, sink, res, log)
	res.Finished = time.Now()
	if err != nil {
		res.Status = Failed
		res.Err = err
	}
	k.record(doc, res, log)
	return res, err
}

// ExecuteCells runs the given blocks in order, each to completion before
// the next starts. Handles must be ascending; later ones are adjusted for
// blocks inserted by chat cells.
// It stops after a cancelled execution or an infrastructure error.
func (k *Kernel) ExecuteCells(ctx context.Context, doc *notebook.Document, hs []notebook.Handle, sink Sink) ([]*Result, error) {
	var results []*Result
	shift := 0
	for _, h := range hs {
		res, err := k.ExecuteCell(ctx, doc, h+notebook.Handle(shift), sink)
		if res != nil {
			results = append(results, res)
			shift += res.Inserted
		}
		if err != nil {
			return results, err
		}
		if res.Status == Cancelled || ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

// ExecuteAll runs every code block in the document.
func (k *Kernel) ExecuteAll(ctx context.Context, doc *notebook.Document, sink Sink) ([]*Result, error) {
	return k.ExecuteCells(ctx, doc, doc.CodeHandles(), sink)
}

func (k *Kernel) execute(ctx context.Context, doc *notebook.Document, sel notebook.Selection, sink Sink, res *Result, log *zap.Logger) error {
	active := sel.Active
	h := active.Handle

	if active.Directives.Has(notebook.Skip) {
		res.Status = Skipped
		return nil
	}
	sink.ClearOutput(h)

	if chat.IsChatLanguage(active.Language) {
		return k.complete(ctx, doc, sel, sink, res, log)
	}

	env := lang.Env{TempDir: k.TempDir}
	if doc.Path != "" {
		env.DocDir = filepath.Dir(doc.Path)
	}
	adapter, lookupErr := k.registry().Lookup(active.Language)

	if name, ok := active.Directives.File(); ok && (adapter == nil || !namesMain(adapter, env, name)) {
		path := lang.CreateFilePath(env, name)
		if err := lang.Materialize(&lang.Program{Path: path, Text: lang.FileContent(active)}); err != nil {
			return err
		}
		res.GeneratedFile = path
		res.Status = Succeeded
		log.Debug("created file", zap.String("path", path))
		return nil
	}

	if lookupErr != nil {
		if errors.Is(lookupErr, lang.ErrUnknownLanguage) {
			res.Status = Skipped
			res.Err = lookupErr
			return nil
		}
		return lookupErr
	}

	bin, err := k.finder().Find(adapter.Name(), adapter.Toolchain())
	if err != nil {
		var missing *lang.MissingToolchainError
		if errors.As(err, &missing) {
			sink.AppendError(h, err.Error()+"\n")
			res.Status = Failed
			res.Err = err
			log.Warn("toolchain missing", zap.Strings("binaries", missing.Binaries))
			return nil
		}
		return err
	}
	env.Binary = bin

	if c, ok := adapter.(lang.Companion); ok {
		prog, err := k.companion(doc, h, c.CompanionLanguage(), env)
		if err != nil {
			return err
		}
		env.Companion = prog
	}

	prog, err := adapter.Assemble(env, sel.Prefix)
	if err != nil {
		return fmt.Errorf("assemble %s: %w", adapter.Name(), err)
	}
	if err := lang.Materialize(prog); err != nil {
		return err
	}
	res.GeneratedFile = prog.Path
	if p, ok := adapter.(lang.Preparer); ok {
		k.prepare(ctx, p, env, prog, log)
	}

	runner := k.runner()
	if e, ok := adapter.(lang.Embedded); ok {
		runner = e.Runner()
	}
	err = k.run(ctx, runner, adapter, env, prog, active, sink, res, log)
	res.Changed = notebook.BumpImageVersions(doc)
	return err
}

// namesMain reports whether a create-file name is the adapter's own program
// file, in which case the cell is ordinary code.
func namesMain(a lang.Adapter, env lang.Env, name string) bool {
	return !filepath.IsAbs(name) && filepath.Base(name) == filepath.Base(a.MainFile(env))
}

// companion assembles and writes the program another language imports.
func (k *Kernel) companion(doc *notebook.Document, h notebook.Handle, language string, env lang.Env) (*lang.Program, error) {
	a, err := k.registry().Lookup(language)
	if err != nil {
		return nil, fmt.Errorf("companion: %w", err)
	}
	cenv := lang.Env{TempDir: env.TempDir, DocDir: env.DocDir}
	prog, err := a.Assemble(cenv, notebook.History(doc, h, a.Name()))
	if err != nil {
		return nil, fmt.Errorf("assemble companion %s: %w", a.Name(), err)
	}
	if err := lang.Materialize(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// complete sends the assistant cells up to the active one and inserts the
// reply's pieces after it.
func (k *Kernel) complete(ctx context.Context, doc *notebook.Document, sel notebook.Selection, sink Sink, res *Result, log *zap.Logger) error {
	h := sel.Active.Handle
	if k.Chat == nil {
		res.Status = Failed
		res.Err = errors.New("no chat provider configured")
		sink.AppendError(h, res.Err.Error()+"\n")
		return nil
	}

	prompts := make([]string, 0, len(sel.Prefix))
	for _, c := range sel.Prefix {
		prompts = append(prompts, c.Source)
	}
	msgs := chat.Conversation(prompts)
	log.Info("chat request", zap.Int("messages", len(msgs)))

	reply, err := k.Chat.Complete(ctx, msgs)
	if err != nil {
		if ctx.Err() != nil {
			res.Status = Cancelled
			return nil
		}
		res.Status = Failed
		res.Err = err
		sink.AppendError(h, err.Error()+"\n")
		return nil
	}

	blocks := chat.SplitResponse(reply)
	doc.Insert(h, blocks)
	sink.InsertCells(h, blocks)
	res.Inserted = len(blocks)
	res.Output = reply
	res.Status = Succeeded
	return nil
}

func (k *Kernel) record(doc *notebook.Document, res *Result, log *zap.Logger) {
	fields := []zap.Field{
		zap.String("status", res.Status.String()),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration()),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	log.Info("execution finished", fields...)

	if k.Audit == nil {
		return
	}
	rec := audit.Record{
		RunID:         res.RunID,
		Document:      doc.Path,
		Cell:          int(res.Handle),
		Language:      res.Language,
		GeneratedFile: res.GeneratedFile,
		Status:        res.Status.String(),
		ExitCode:      res.ExitCode,
		Duration:      res.Duration(),
	}
	if res.Err != nil {
		rec.Error = strings.TrimSpace(res.Err.Error())
	}
	if _, err := k.Audit.Log(rec); err != nil {
		log.Warn("audit log failed", zap.Error(err))
	}
}
