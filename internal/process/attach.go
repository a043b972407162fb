package process

import (
	"context"
	"errors"
	"fmt"

	"memwatch/driver"
	"memwatch/internal/logging"
)

// Attacher attaches to the first running process named in Names.
type Attacher struct {
	Names []string
	Log   logging.Logger

	// find is Find unless replaced in tests.
	find func(names ...string) (*Process, error)
}

// NewAttacher returns an attacher for any of names.
func NewAttacher(log logging.Logger, names ...string) *Attacher {
	return &Attacher{Names: names, Log: logging.OrNoOp(log), find: Find}
}

// Attach implements driver.Attacher. A missing process is reported as
// driver.ErrNotAttached so the caller keeps retrying.
func (a *Attacher) Attach(ctx context.Context) (*driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	find := a.find
	if find == nil {
		find = Find
	}
	p, err := find(a.Names...)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", driver.ErrNotAttached, err)
	}
	if err != nil {
		return nil, err
	}
	logging.OrNoOp(a.Log).Debug("found target", "pid", p.PID, "name", p.Name, "modules", len(p.modules))
	return driver.NewSession(p.String(), p), nil
}
