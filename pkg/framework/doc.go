// Package framework is a small workflow graph engine. A Graph is compiled
// once from named nodes and edges, validated up front, and then run any
// number of times concurrently. Each run threads an immutable State through
// the nodes, merging partial updates by per-field policy, with bounded
// retries, fork/join fan-out and panic capture built into the engine.
package framework
