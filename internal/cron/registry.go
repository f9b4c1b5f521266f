package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Job is one unit of scheduled maintenance. Name doubles as the metrics label
// and the -jobs selector on the worker command line.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order with unique names.
type Registry struct {
	order  []string
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("cron: nil job")
	}
	name := job.Name()
	if _, taken := r.byName[name]; taken {
		return fmt.Errorf("cron: job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

// Jobs returns the jobs in registration order. The slice is the caller's.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Select narrows the registry to a comma separated list of names. An empty
// list keeps everything.
func (r *Registry) Select(names string) (*Registry, error) {
	if strings.TrimSpace(names) == "" {
		return r, nil
	}
	picked := &Registry{byName: map[string]Job{}}
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		job, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("cron: unknown job %q (have %s)", name, strings.Join(r.order, ", "))
		}
		if err := picked.Register(job); err != nil {
			return nil, err
		}
	}
	return picked, nil
}
