// Package loop provides the bounded tool-calling loop shared by the planned
// orchestrator and the simple create/edit agents.
//
// # Overview
//
// The loop separates concerns into distinct types:
//
//   - State: tracks the iteration counter, the limit and accumulated tokens
//   - Strategy: decides whether another iteration runs and builds the Result
//   - Iteration: one model call plus the execution of its tool calls
//   - OrchestratorLoop: runs iterations until the strategy stops it
//
// # Usage
//
//	session := loop.NewSession(systemPrompt, userPrompt)
//	iteration := loop.NewToolIteration(&loop.Dependencies{
//	    Chat:     router,
//	    Executor: tools.NewExecutor(tools.NewDocumentRegistry(), searcher),
//	    Session:  session,
//	    OnResult: persistEdit,
//	}, loop.Request{
//	    ModelID:     modelID,
//	    ToolChoice:  llm.ToolChoice{Mode: llm.ToolChoiceAuto},
//	    Temperature: consts.LoopTemperature,
//	    MaxTokens:   consts.LoopMaxTokens,
//	}, page.HTMLContent)
//
//	l, err := loop.NewBuilder().
//	    WithMaxIterations(consts.MaxToolIterations).
//	    WithIteration(iteration).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	result, err := l.Run(ctx)
//
// A terminal tool call (write_full_file, ask_clarification, finish) ends the
// loop with Reason BreakTerminal and the call in Result.Terminal. A reply
// without tool calls ends it with Reason Break and the text in
// Result.FinalContent. Running out of iterations yields BreakMaxIterations.
package loop
