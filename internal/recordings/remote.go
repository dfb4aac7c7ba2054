package recordings

import (
	"context"
	"fmt"

	"github.com/user/parley/pkg/backend"
)

// Remote runs user mutations against the backend with optimistic local
// application: the collection changes immediately, then settles when
// the backend answers. A failed call rolls the collection back to its
// pre-mutation snapshot.
type Remote struct {
	mgr *Manager
	svc backend.RecordingService
}

func NewRemote(mgr *Manager, svc backend.RecordingService) *Remote {
	return &Remote{mgr: mgr, svc: svc}
}

// Create inserts an optimistic recording, asks the backend to create
// it, and confirms the optimistic entry against the returned one.
func (r *Remote) Create(ctx context.Context, folderID backend.FolderID, name string) (backend.Recording, error) {
	tempID := r.mgr.Apply(backend.Recording{FolderID: folderID, Name: name})

	real, err := r.svc.Create(ctx, backend.Recording{FolderID: folderID, Name: name})
	if err != nil {
		if rbErr := r.mgr.Reject(string(tempID)); rbErr != nil {
			return backend.Recording{}, fmt.Errorf("create recording: %w (rollback: %v)", err, rbErr)
		}
		return backend.Recording{}, fmt.Errorf("create recording: %w", err)
	}

	r.mgr.Confirm(*real)
	return *real, nil
}

// Rename renames a recording optimistically and settles against the
// backend's response.
func (r *Remote) Rename(ctx context.Context, id backend.RecordingID, name string) (backend.Recording, error) {
	token, err := r.mgr.ApplyRename(id, name)
	if err != nil {
		return backend.Recording{}, err
	}

	real, err := r.svc.Rename(ctx, id, name)
	if err != nil {
		if rbErr := r.mgr.Reject(token); rbErr != nil {
			return backend.Recording{}, fmt.Errorf("rename recording: %w (rollback: %v)", err, rbErr)
		}
		return backend.Recording{}, fmt.Errorf("rename recording: %w", err)
	}

	r.mgr.Commit(token)
	r.mgr.Upsert(*real)
	return *real, nil
}

// Delete removes a recording optimistically and settles against the
// backend's response.
func (r *Remote) Delete(ctx context.Context, id backend.RecordingID) error {
	token, err := r.mgr.ApplyDelete(id)
	if err != nil {
		return err
	}

	if err := r.svc.Delete(ctx, id); err != nil {
		if rbErr := r.mgr.Reject(token); rbErr != nil {
			return fmt.Errorf("delete recording: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("delete recording: %w", err)
	}

	r.mgr.Commit(token)
	return nil
}
