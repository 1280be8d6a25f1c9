// Package llm wraps langchaingo models with the call policy the dialogue
// engine needs: a per-attempt timeout, error categorisation and bounded
// retry with exponential backoff.
//
// Components that talk to a model (the intent extractor and the response
// generator) receive a *Client from the engine's composition root, so the
// retry budget is owned in one place and tests can substitute a scripted
// llms.Model.
package llm
