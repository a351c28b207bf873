// Package tui provides the terminal progress view for the generate command.
//
// The view is read-only. It lists the pipeline stages with their status,
// keeps a short activity log and shows the final ticket once the run
// returns. Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	emitter := orchestrator.NewEventEmitter(64, 100*time.Millisecond)
//	program, app := tui.NewProgressProgram(blockingLabel)
//	go tui.Forward(program, emitter.Events())
//	go func() {
//	    result, err := svc.Generate(ctx, brainDump, true)
//	    emitter.Close()
//	    if err != nil {
//	        program.Send(tui.DoneMsg{Err: err})
//	        return
//	    }
//	    program.Send(tui.DoneMsg{Ticket: &result.Ticket})
//	}()
//	program.Run()
package tui
