// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"strings"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// taskParamPrefix prefixes query parameters passed to a task.
const taskParamPrefix = "param."

func (api *restAPI) tasks() (grid.TaskManager, error) {
	if api.services.Tasks == nil {
		return nil, restdata.ErrNotImplemented{Text: "Tasks are not supported"}
	}
	return api.services.Tasks, nil
}

func (api *restAPI) listTasks(req *Request) (*Response, error) {
	tasks, err := api.tasks()
	if err != nil {
		return nil, err
	}
	infos, err := tasks.Tasks()
	if err != nil {
		return nil, err
	}
	result := make([]restdata.Task, len(infos))
	for i, info := range infos {
		result[i] = restdata.Task{
			Name:       info.Name,
			Type:       info.Type,
			Parameters: info.Parameters,
		}
		if result[i].Parameters == nil {
			result[i].Parameters = []string{}
		}
	}
	return ok(result), nil
}

// execTask runs a task with the "param.*" query parameters.  A task
// with no result answers 204.
func (api *restAPI) execTask(req *Request) (*Response, error) {
	tasks, err := api.tasks()
	if err != nil {
		return nil, err
	}
	params := make(map[string]string)
	for name, values := range req.Query {
		if strings.HasPrefix(name, taskParamPrefix) && len(values) > 0 {
			params[strings.TrimPrefix(name, taskParamPrefix)] = values[0]
		}
	}
	result, err := tasks.RunTask(req.Context(), req.Var("taskName"), params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return noContent(), nil
	}
	return ok(result), nil
}
