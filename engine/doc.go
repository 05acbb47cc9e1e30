// Package engine composes registered step functions into a single lazy
// pipeline and drives it to completion.
//
// Steps come in four shapes: a SourceFunc produces a stream, a
// TransformFunc consumes and produces one, a SinkFunc consumes a stream
// into one aggregate value, and an ItemFunc maps one item to one item.
// The Runner classifies each scheduled step by its shape, checks that
// adjacent roles are compatible, threads one stream through the whole
// chain, and attaches instrumentation (first-item peek, per-item
// progress, cooperative cancellation, preview truncation) between steps.
//
//	reg := engine.NewRegistry()
//	reg.Register("frames", engine.SourceFunc(loadFrames))
//	reg.Register("diff", engine.TransformFunc(pairDiff), engine.WithPreview())
//	reg.Register("scale", engine.ItemFunc(scale))
//	reg.Register("stack", engine.SinkFunc(stack))
//
//	runner := engine.NewRunner(reg)
//	result, err := runner.Run(ctx, []engine.Step{
//	    {Name: "frames", Params: engine.Params{"pattern": "data/*.dat"}},
//	    {Name: "diff"},
//	    {Name: "scale", Params: engine.Params{"factor": 2.0}, Workers: 4},
//	    {Name: "stack"},
//	}, engine.Options{})
package engine
