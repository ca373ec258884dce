package podsite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eringen/podsite/cdn"
)

const ledgerFile = "uploads.db"

// UploadOptions controls one upload run.
type UploadOptions struct {
	// Force uploads files the ledger reports as unchanged.
	Force bool
	// Clean deletes the remote prefix first. CLEAN_DESTINATION=true in the
	// environment has the same effect.
	Clean bool
}

// Upload mirrors the output tree to the configured CDN. Missing credentials
// or a missing output tree are fatal here; failed files are not, they are
// listed in the returned report.
func (a *App) Upload(ctx context.Context, opts UploadOptions) (cdn.Report, error) {
	lock, err := acquireLock(a.Config.StateDir())
	if err != nil {
		return cdn.Report{}, err
	}
	defer lock.Unlock()
	return a.upload(ctx, a.Log, opts)
}

// upload pushes img/ first, points generated files at the CDN copies of the
// images that made it, then pushes everything else.
func (a *App) upload(ctx context.Context, log *zap.Logger, opts UploadOptions) (cdn.Report, error) {
	out := a.Config.OutputDir()
	if !dirExists(out) {
		return cdn.Report{}, fmt.Errorf("%w: %s", ErrOutputMissing, out)
	}
	store, err := a.storageBackend()
	if err != nil {
		return cdn.Report{}, err
	}

	ledger, err := cdn.OpenLedger(filepath.Join(a.Config.StateDir(), ledgerFile))
	if err != nil {
		return cdn.Report{}, err
	}
	defer ledger.Close()

	uploader := cdn.NewUploader(store, cdn.UploaderOptions{
		Prefix:      a.Config.CDN.Prefix,
		Concurrency: a.Config.CDN.Concurrency,
		Ledger:      ledger,
		Force:       opts.Force,
	}, log)

	if opts.Clean || a.Config.CDN.Clean {
		if err := uploader.Clean(ctx); err != nil {
			return cdn.Report{}, fmt.Errorf("clean destination: %w", err)
		}
	}

	files, err := cdn.ListFiles(out)
	if err != nil {
		return cdn.Report{}, fmt.Errorf("list %s: %w", out, err)
	}
	imgs, rest := partitionFiles(files, imageDir+"/")

	log.Info("upload started",
		zap.String("target", store.Target()),
		zap.Int("files", len(files)),
		zap.Int("images", len(imgs)),
	)
	report := uploader.UploadFiles(ctx, out, imgs)

	if base := a.Config.CDN.URL; base != "" {
		n, err := cdn.RewriteTree(out, cdn.Rewrite{
			BaseURL:  base,
			Prefix:   a.Config.CDN.Prefix,
			Dir:      imageDir,
			Uploaded: report.Succeeded(),
		})
		if err != nil {
			return report, fmt.Errorf("rewrite image urls: %w", err)
		}
		log.Info("rewrote image urls", zap.Int("files", n), zap.String("cdn", base))
	}

	report.Merge(uploader.UploadFiles(ctx, out, rest))
	log.Info("upload finished",
		zap.Int("uploaded", report.Uploaded),
		zap.Int("unchanged", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
		zap.Error(report.Err()),
	)
	return report, nil
}

// Uploads lists what the ledger holds for the configured destination, the
// state the next upload compares against.
func (a *App) Uploads() ([]cdn.Entry, error) {
	store, err := a.storageBackend()
	if err != nil {
		return nil, err
	}
	ledger, err := cdn.OpenLedger(filepath.Join(a.Config.StateDir(), ledgerFile))
	if err != nil {
		return nil, err
	}
	defer ledger.Close()
	return ledger.List(store.Target())
}

func partitionFiles(files []string, prefix string) (matched, rest []string) {
	for _, f := range files {
		if strings.HasPrefix(f, prefix) {
			matched = append(matched, f)
		} else {
			rest = append(rest, f)
		}
	}
	return matched, rest
}

func isMissingCredentials(err error) bool {
	return errors.Is(err, cdn.ErrMissingCredentials)
}
