/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log lines.

Wire it by passing Hooks to the engine and the Metrics value to the LLM client
(as an llm.Observer) and to the instrumented checkpoint store:

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	client := llm.NewClient(model, llm.WithObserver(m))
	store := middleware.Instrumented(base, m)
	eng := workflow.New(sessions, catalog, extractor, generator,
		workflow.WithLifecycleHooks(observability.Hooks(logger, m)))
*/
package observability
