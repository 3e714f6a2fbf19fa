// Package agentloop implements the agent orchestration core: a tool router
// that dispatches named capabilities behind a uniform result envelope, and a
// bounded iterate-until-done loop that drives a conversational model through
// repeated rounds of "produce text or invoke a tool".
//
// Tool calls are carried inside the model's response text and recovered by
// an ordered list of extraction strategies (bare JSON, tagged fence, generic
// fence, embedded object). Anything the model can react to (an unknown
// capability, a failing capability, a malformed call) stays inside the
// conversation; only round-budget exhaustion surfaces as an error.
//
// # Quick Start
//
//	router := agentloop.NewRouter()
//	capability.RegisterFileTools(router, capability.NewWorkspace("/path/to/project"))
//
//	loop := agentloop.NewLoop(llmclient.GetDefaultClient(), router, agentloop.LoopConfig{
//	    Model: "claude-sonnet-4-5",
//	}, nil)
//	defer loop.Close()
//
//	result, err := loop.Run(ctx, "Create a hello.py file", nil)
package agentloop
