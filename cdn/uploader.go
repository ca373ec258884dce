package cdn

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// DefaultConcurrency caps simultaneous uploads.
const DefaultConcurrency = 10

// UploaderOptions configures an Uploader.
type UploaderOptions struct {
	Prefix      string // remote key prefix
	Concurrency int
	Ledger      *Ledger // optional; enables skipping unchanged bodies
	Force       bool    // upload even when the ledger says the body is unchanged
}

func (o *UploaderOptions) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
}

// Uploader mirrors local files to a Storage with bounded concurrency.
type Uploader struct {
	store Storage
	opts  UploaderOptions
	log   *zap.Logger
}

// NewUploader returns an Uploader writing to store.
func NewUploader(store Storage, opts UploaderOptions, logger *zap.Logger) *Uploader {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: store, opts: opts, log: logger.Named("cdn")}
}

// Clean removes the remote prefix and forgets the ledger entries for it.
func (u *Uploader) Clean(ctx context.Context) error {
	u.log.Info("cleaning remote destination",
		zap.String("target", u.store.Target()),
		zap.String("prefix", u.opts.Prefix),
	)
	if err := u.store.Clean(ctx, u.opts.Prefix); err != nil {
		return fmt.Errorf("clean destination: %w", err)
	}
	if u.opts.Ledger != nil {
		if err := u.opts.Ledger.Reset(u.store.Target()); err != nil {
			return fmt.Errorf("reset upload ledger: %w", err)
		}
	}
	return nil
}

// ListFiles returns every regular file below root as slash-separated paths
// relative to root, in lexical order.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

// UploadTree uploads every file below root.
func (u *Uploader) UploadTree(ctx context.Context, root string) (Report, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Report{}, err
	}
	if !info.IsDir() {
		return Report{}, fmt.Errorf("%s is not a directory", root)
	}
	files, err := ListFiles(root)
	if err != nil {
		return Report{}, fmt.Errorf("list %s: %w", root, err)
	}
	return u.UploadFiles(ctx, root, files), nil
}

// UploadFiles uploads the given root-relative files. At most Concurrency
// uploads are in flight; a failed file is recorded in the report and never
// stops the others.
func (u *Uploader) UploadFiles(ctx context.Context, root string, files []string) Report {
	start := time.Now()
	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(files))
	)

	p := pool.New().WithMaxGoroutines(u.opts.Concurrency)
	for _, rel := range files {
		p.Go(func() {
			res := u.uploadOne(ctx, root, rel)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
	}
	p.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	report := newReport(results)
	report.Duration = time.Since(start)

	u.log.Info("upload batch finished",
		zap.String("target", u.store.Target()),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.String("bytes", humanize.Bytes(uint64(report.Bytes))),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (u *Uploader) uploadOne(ctx context.Context, root, rel string) (res Result) {
	key := RemoteKey(u.opts.Prefix, rel)
	res = Result{Path: rel, Key: key}
	started := time.Now()
	defer func() { res.Duration = time.Since(started) }()

	if err := ctx.Err(); err != nil {
		res.Err = &UploadError{Key: key, Err: err}
		u.log.Warn("upload not attempted", zap.String("key", key), zap.String("path", rel), zap.Error(err))
		return res
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		res.Err = &UploadError{Key: key, Err: err}
		u.logFailure(res)
		return res
	}
	res.Size = int64(len(data))
	digest := sha256.Sum256(data)
	sum := hex.EncodeToString(digest[:])

	target := u.store.Target()
	if u.opts.Ledger != nil && !u.opts.Force {
		prev, ok, err := u.opts.Ledger.Lookup(target, key)
		if err != nil {
			u.log.Warn("upload ledger lookup failed", zap.String("key", key), zap.Error(err))
		} else if ok && prev == sum {
			res.Skipped = true
			u.log.Debug("unchanged, skipping", zap.String("key", key))
			return res
		}
	}

	contentType := ContentType(rel)
	if err := u.store.Put(ctx, key, contentType, bytes.NewReader(data), res.Size); err != nil {
		res.Err = err
		u.logFailure(res)
		return res
	}
	u.log.Debug("uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.String("size", humanize.Bytes(uint64(res.Size))),
	)

	if u.opts.Ledger != nil {
		if err := u.opts.Ledger.Record(target, key, sum, res.Size); err != nil {
			u.log.Warn("upload ledger record failed", zap.String("key", key), zap.Error(err))
		}
	}
	return res
}

func (u *Uploader) logFailure(res Result) {
	fields := []zap.Field{zap.String("key", res.Key), zap.String("path", res.Path), zap.Error(res.Err)}
	if ue, ok := res.Err.(*UploadError); ok {
		fields = append(fields, zap.Int("status", ue.Status), zap.String("body", ue.Body))
	}
	u.log.Error("upload failed", fields...)
}
