// Package main hosts the reencode CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, applies
// flag overrides, builds the logger and hands off to the internal packages:
// convert drives the batch walker, while concat, remux, check and embed-subs
// wrap their single-purpose packages. Output meant for people is rendered as
// go-pretty tables; --json switches report output to machine-readable form.
package main
