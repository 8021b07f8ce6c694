// Package policy embeds the Open Policy Agent engine so pipelines can gate or
// annotate data with Rego policies.
//
// Modules are parsed once per Engine, prepared queries are cached per
// entrypoint and decisions are memoised in a bounded LRU keyed by the
// entrypoint and the canonical JSON of the input.
package policy
