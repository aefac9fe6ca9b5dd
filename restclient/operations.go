// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// ErrInProgress is returned when downloading a backup that has not
// finished yet.
var ErrInProgress = errors.New("operation in progress")

// pollInterval is how often Await checks an operation.
const pollInterval = 100 * time.Millisecond

// CreateBackup starts a backup on the server.
func (c *Client) CreateBackup(name string, request restdata.BackupRequest) error {
	_, err := c.PostTo("v3/container/backups/{backupName}", map[string]interface{}{"backupName": name}, request, nil)
	return err
}

// BackupStatus polls a backup.
func (c *Client) BackupStatus(name string) (grid.OperationStatus, error) {
	status, err := c.HeadAt("v3/container/backups/{backupName}", map[string]interface{}{"backupName": name})
	if err != nil {
		return grid.OperationNotFound, err
	}
	return operationStatus(status, http.StatusOK)
}

// RestoreStatus polls a restore.
func (c *Client) RestoreStatus(name string) (grid.OperationStatus, error) {
	status, err := c.HeadAt("v3/container/restores/{restoreName}", map[string]interface{}{"restoreName": name})
	if err != nil {
		return grid.OperationNotFound, err
	}
	return operationStatus(status, http.StatusCreated)
}

// operationStatus maps a polling status code to an operation
// status.  complete is the code of a finished operation.
func operationStatus(status, complete int) (grid.OperationStatus, error) {
	switch status {
	case http.StatusNotFound:
		return grid.OperationNotFound, nil
	case http.StatusAccepted:
		return grid.OperationInProgress, nil
	case http.StatusInternalServerError:
		return grid.OperationFailed, nil
	case complete:
		return grid.OperationComplete, nil
	}
	return grid.OperationNotFound, fmt.Errorf("unexpected status %v", http.StatusText(status))
}

// Await polls an operation with poll until it is no longer in
// progress or ctx is done.
func Await(ctx context.Context, poll func() (grid.OperationStatus, error)) (grid.OperationStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		status, err := poll()
		if err != nil || status != grid.OperationInProgress {
			return status, err
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadBackup copies a finished backup archive to w.  A backup
// still running returns ErrInProgress; a failed backup returns the
// server's error.
func (c *Client) DownloadBackup(name string, w io.Writer) error {
	u, err := c.Template("v3/container/backups/{backupName}", map[string]interface{}{"backupName": name})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusAccepted {
		return ErrInProgress
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// removeOperation deletes an operation.  Returns true if the server
// deferred the removal until the operation finishes.
func (c *Client) removeOperation(template string, vars map[string]interface{}) (bool, error) {
	status, err := c.DeleteAt(template, vars)
	if err != nil {
		return false, err
	}
	return status == http.StatusAccepted, nil
}

// RemoveBackup deletes a backup and its archive.  Returns true if
// the backup is still running and will be removed when it finishes.
func (c *Client) RemoveBackup(name string) (bool, error) {
	return c.removeOperation("v3/container/backups/{backupName}", map[string]interface{}{"backupName": name})
}

// RemoveRestore forgets a restore.
func (c *Client) RemoveRestore(name string) (bool, error) {
	return c.removeOperation("v3/container/restores/{restoreName}", map[string]interface{}{"restoreName": name})
}

// BackupNames lists the server's backups.
func (c *Client) BackupNames() (names []string, err error) {
	err = c.GetFrom("v3/container/backups", map[string]interface{}{}, &names)
	return
}

// RestoreNames lists the server's restores.
func (c *Client) RestoreNames() (names []string, err error) {
	err = c.GetFrom("v3/container/restores", map[string]interface{}{}, &names)
	return
}

// Restore starts restoring an archive that is already on the
// server's filesystem.
func (c *Client) Restore(name, location string, resources map[string][]string) error {
	body := restdata.RestoreRequest{Location: location, Resources: resources}
	_, err := c.PostTo("v3/container/restores/{restoreName}", map[string]interface{}{"restoreName": name}, body, nil)
	return err
}

// RestoreUpload starts restoring an archive read from archive, which
// is uploaded to the server.
func (c *Client) RestoreUpload(name string, archive io.Reader, resources map[string][]string) error {
	u, err := c.Template("v3/container/restores/{restoreName}", map[string]interface{}{"restoreName": name})
	if err != nil {
		return err
	}

	reader, writer := io.Pipe()
	mw := multipart.NewWriter(writer)
	go func() {
		err := writeUpload(mw, archive, resources)
		err = firstError(err, mw.Close())
		writer.CloseWithError(err)
	}()

	req, err := http.NewRequest(http.MethodPost, u.String(), reader)
	if err != nil {
		_ = reader.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", restdata.JSONMediaType)
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func writeUpload(mw *multipart.Writer, archive io.Reader, resources map[string][]string) error {
	if len(resources) > 0 {
		part, err := mw.CreateFormField("resources")
		if err != nil {
			return err
		}
		if err := codec.NewEncoder(part, &codec.JsonHandle{}).Encode(resources); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("backup", "backup.zip")
	if err != nil {
		return err
	}
	_, err = io.Copy(part, archive)
	return err
}
