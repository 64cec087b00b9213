package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/repository"
	"github.com/andresuchdata/inventory-advisor/internal/storage"
)

const (
	archivePrefix   = "runs"
	archiveRequest  = "request.json"
	archiveResponse = "response.json"
	archiveRun      = "run.json"

	defaultHistoryLimit = 20
)

// runArchive keeps every run under runs/<id>/ in object storage and serves
// history from there when no database is configured.
type runArchive struct {
	store storage.ObjectStorage
}

// save uploads the request, the response and the run metadata. Failures are
// logged only.
func (a runArchive) save(ctx context.Context, run *domain.PredictionRun, req domain.PredictionRequest) {
	meta := *run
	meta.Response = nil

	objects := []struct {
		name string
		body any
	}{
		{archiveRequest, req},
		{archiveResponse, run.Response},
		{archiveRun, meta},
	}
	for _, obj := range objects {
		data, err := json.Marshal(obj.body)
		if err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Str("object", obj.name).Msg("predictions: archive encode failed")
			continue
		}
		key := path.Join(archivePrefix, run.ID, obj.name)
		if err := a.store.UploadObject(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("predictions: archive upload failed")
		}
	}
}

// get rebuilds one run with its response.
func (a runArchive) get(ctx context.Context, id string) (*domain.PredictionRun, error) {
	dir, err := os.MkdirTemp("", "advisor-run-")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var run domain.PredictionRun
	if err := a.fetch(ctx, dir, id, archiveRun, &run); err != nil {
		return nil, err
	}
	var resp domain.PredictionResponse
	if err := a.fetch(ctx, dir, id, archiveResponse, &resp); err != nil {
		return nil, err
	}
	run.Response = &resp
	return &run, nil
}

// list returns the newest runs without their responses, ordered like the
// database listing.
func (a runArchive) list(ctx context.Context, limit int) ([]domain.PredictionRun, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	objects, err := a.store.ListObjects(ctx, archivePrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list archived runs: %w", err)
	}

	metas := make([]storage.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if path.Base(obj.Key) == archiveRun {
			metas = append(metas, obj)
		}
	}
	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].LastModified.Equal(metas[j].LastModified) {
			return metas[i].LastModified.After(metas[j].LastModified)
		}
		return metas[i].Key < metas[j].Key
	})
	if len(metas) > limit {
		metas = metas[:limit]
	}

	dir, err := os.MkdirTemp("", "advisor-runs-")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	runs := make([]domain.PredictionRun, 0, len(metas))
	for _, obj := range metas {
		var run domain.PredictionRun
		if err := a.fetch(ctx, dir, path.Base(path.Dir(obj.Key)), archiveRun, &run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (a runArchive) fetch(ctx context.Context, dir, id, name string, out any) error {
	dest := filepath.Join(dir, id+"-"+name)
	if err := a.store.DownloadObject(ctx, path.Join(archivePrefix, id, name), dest); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return repository.ErrRunNotFound
		}
		return fmt.Errorf("download archived %s: %w", name, err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return fmt.Errorf("read archived %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode archived %s: %w", name, err)
	}
	return nil
}
