package editor

import (
	"context"
	"log"

	"Storyboard/internal/export"
)

// CommandKind names an editor command a front end can queue.
type CommandKind int

const (
	CmdExport CommandKind = iota
	CmdClear
	CmdUndo
	CmdRedo
)

func (k CommandKind) String() string {
	switch k {
	case CmdExport:
		return "export"
	case CmdClear:
		return "clear"
	case CmdUndo:
		return "undo"
	case CmdRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// Command is a queued request. Reply, if set, must be buffered; a reply that
// cannot be delivered is dropped.
type Command struct {
	Kind  CommandKind
	Reply chan<- Result
}

// Result answers a Command.
type Result struct {
	Kind    CommandKind
	Export  export.Result
	Changed bool
	Err     error
}

// Commands is the queue Run reads from.
func (e *Editor) Commands() chan<- Command {
	return e.commands
}

// Run serves queued commands until ctx ends. Exports run in the background
// so further commands, including a rejected second export, are answered
// while one is recording.
func (e *Editor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return ctx.Err()
		case cmd := <-e.commands:
			e.dispatch(ctx, cmd)
		}
	}
}

func (e *Editor) dispatch(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdExport:
		if e.exporting.Load() {
			log.Printf("[EDITOR] Export already running for %s", e.cfg.FrameID)
			reply(cmd, Result{Kind: cmd.Kind, Err: export.ErrBusy})
			return
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			res, err := e.Export(ctx)
			reply(cmd, Result{Kind: cmd.Kind, Export: res, Changed: err == nil, Err: err})
		}()
	case CmdClear:
		e.Clear()
		reply(cmd, Result{Kind: cmd.Kind, Changed: true})
	case CmdUndo:
		reply(cmd, Result{Kind: cmd.Kind, Changed: e.Undo()})
	case CmdRedo:
		reply(cmd, Result{Kind: cmd.Kind, Changed: e.Redo()})
	default:
		log.Printf("[EDITOR] Unknown command %d", cmd.Kind)
	}
}

func reply(cmd Command, r Result) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- r:
	default:
		log.Printf("[EDITOR] Dropped %s reply", cmd.Kind)
	}
}

// Do queues a command and waits for its result.
func (e *Editor) Do(ctx context.Context, kind CommandKind) (Result, error) {
	ch := make(chan Result, 1)
	select {
	case e.commands <- Command{Kind: kind, Reply: ch}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-ch:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
