// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the long-running operation protocol shared by
// backups and restores.  Creating an operation answers 202 at once;
// clients then poll the same resource, which answers 202 while the
// operation runs, a completion response when it is done, and 500 if
// it failed.  DELETE forgets the operation, deferring until it
// finishes if it is still running.

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

type operationKind int

const (
	backupOperation operationKind = iota
	restoreOperation
)

func (k operationKind) String() string {
	if k == restoreOperation {
		return "restore"
	}
	return "backup"
}

// pathVar is the path variable holding the operation name.
func (k operationKind) pathVar() string {
	if k == restoreOperation {
		return "restoreName"
	}
	return "backupName"
}

// operationErrors is implemented by backup managers that remember
// why an operation failed.
type operationErrors interface {
	Err(kind, name string) error
}

// lroProtocol serves one kind of long-running operation.
type lroProtocol struct {
	api  *restAPI
	kind operationKind
}

func (p lroProtocol) manager() (grid.BackupManager, error) {
	if p.api.services.Backups == nil {
		return nil, restdata.ErrNotImplemented{Text: "Backups are not supported"}
	}
	return p.api.services.Backups, nil
}

func (p lroProtocol) status(m grid.BackupManager, name string) grid.OperationStatus {
	if p.kind == restoreOperation {
		return m.RestoreStatus(name)
	}
	return m.BackupStatus(name)
}

// watch logs the failure, if any, of a started operation, then
// calls cleanup.
func (p lroProtocol) watch(name string, done <-chan error, cleanup func()) {
	go func() {
		err := <-done
		if cleanup != nil {
			cleanup()
		}
		if err != nil {
			p.api.log.WithError(err).WithFields(logrus.Fields{
				"kind": p.kind.String(),
				"name": name,
			}).Warn("operation failed")
		}
	}()
}

// failure builds the error for a failed operation.
func (p lroProtocol) failure(m grid.BackupManager, name string) error {
	err := restdata.ErrServer{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("%v '%v' failed", p.kind, name),
	}
	if withErrors, ok := m.(operationErrors); ok {
		if cause := withErrors.Err(p.kind.String(), name); cause != nil {
			err.Cause = cause.Error()
		}
	}
	return err
}

func (p lroProtocol) notFound(name string) error {
	return restdata.ErrNotFound{Err: fmt.Errorf("%v '%v' not found", p.kind, name)}
}

// list returns the names of all operations of this kind.
func (p lroProtocol) list(req *Request) (*Response, error) {
	m, err := p.manager()
	if err != nil {
		return nil, err
	}
	var names []string
	if p.kind == restoreOperation {
		names = m.RestoreNames()
	} else {
		names = m.BackupNames()
	}
	if names == nil {
		names = []string{}
	}
	return ok(names), nil
}

// create starts a new operation.
func (p lroProtocol) create(req *Request) (*Response, error) {
	m, err := p.manager()
	if err != nil {
		return nil, err
	}
	name := req.Var(p.kind.pathVar())
	if p.status(m, name) != grid.OperationNotFound {
		return nil, grid.ErrOperationExists{Kind: p.kind.String(), Name: name}
	}

	var (
		done    <-chan error
		cleanup func()
	)
	if p.kind == backupOperation {
		body := restdata.BackupRequest{}
		if err := req.Decode(&body); err != nil {
			return nil, err
		}
		done, err = m.CreateBackup(name, body.Directory, grid.Resources(body.Resources))
	} else {
		var (
			location  string
			resources grid.Resources
		)
		location, resources, cleanup, err = p.restoreSource(req)
		if err != nil {
			return nil, err
		}
		done, err = m.RestoreBackup(name, location, resources)
	}
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}
	p.watch(name, done, cleanup)
	return withStatus(http.StatusAccepted), nil
}

// restoreSource finds the archive a restore reads.  It is either
// named by a JSON body, or uploaded as multipart/form-data, in which
// case it is saved to a temporary file that cleanup removes.
func (p lroProtocol) restoreSource(req *Request) (location string, resources grid.Resources, cleanup func(), err error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body := restdata.RestoreRequest{}
		if err = req.Decode(&body); err != nil {
			return
		}
		if body.Location == "" {
			err = restdata.ErrBadRequest{Err: errors.New("Missing location")}
			return
		}
		return body.Location, grid.Resources(body.Resources), nil, nil
	}

	reader, err := req.HTTP.MultipartReader()
	if err != nil {
		err = restdata.ErrBadRequest{Err: err}
		return
	}
	cleanup = func() {
		if location != "" {
			_ = os.Remove(location)
		}
	}
	defer func() {
		if err != nil {
			cleanup()
			cleanup = nil
		}
	}()
	for {
		part, perr := reader.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			err = restdata.ErrBadRequest{Err: perr}
			return
		}
		switch part.FormName() {
		case "backup":
			if location != "" {
				err = restdata.ErrBadRequest{Err: errors.New("More than one backup part")}
				return
			}
			var f *os.File
			f, err = ioutil.TempFile(p.api.tempDir, "restore-*.zip")
			if err != nil {
				return
			}
			location = f.Name()
			_, err = io.Copy(f, part)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return
			}
		case "resources":
			var r map[string][]string
			if err = restdata.Decode(restdata.JSONMediaType, part, &r); err != nil {
				err = restdata.ErrBadRequest{Err: err}
				return
			}
			resources = grid.Resources(r)
		}
		_ = part.Close()
	}
	if location == "" {
		err = restdata.ErrBadRequest{Err: errors.New("Missing backup part")}
	}
	return
}

// poll reports the state of an operation.  A complete backup is
// downloaded by GET; HEAD of a complete restore answers 201.
func (p lroProtocol) poll(req *Request) (*Response, error) {
	m, err := p.manager()
	if err != nil {
		return nil, err
	}
	name := req.Var(p.kind.pathVar())
	switch p.status(m, name) {
	case grid.OperationNotFound:
		return nil, p.notFound(name)
	case grid.OperationInProgress:
		return withStatus(http.StatusAccepted), nil
	case grid.OperationFailed:
		return nil, p.failure(m, name)
	}

	if p.kind == restoreOperation {
		return withStatus(http.StatusCreated), nil
	}
	if req.IsHead() {
		return withStatus(http.StatusOK), nil
	}
	path := m.BackupPath(name)
	if path == "" {
		// removed between the two calls
		return nil, p.notFound(name)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	resp := &Response{
		Status: http.StatusOK,
		Header: http.Header{},
		Stream: func(w http.ResponseWriter) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		},
	}
	resp.Header.Set("Content-Type", grid.MediaZip)
	resp.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	return resp, nil
}

// remove forgets an operation.
func (p lroProtocol) remove(req *Request) (*Response, error) {
	m, err := p.manager()
	if err != nil {
		return nil, err
	}
	name := req.Var(p.kind.pathVar())
	var status grid.OperationStatus
	if p.kind == restoreOperation {
		status = m.RemoveRestore(name)
	} else {
		status = m.RemoveBackup(name)
	}
	switch status {
	case grid.OperationNotFound:
		return nil, p.notFound(name)
	case grid.OperationInProgress:
		return withStatus(http.StatusAccepted), nil
	}
	return noContent(), nil
}
