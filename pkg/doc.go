// Package pkg provides the core libraries behind the vessel CLI.
//
// # Overview
//
// Vessel resolves a project's declared dependencies against a shared
// package set, fetches the resolved sources, and emits compiler flags.
// The pkg directory is organized along that flow:
//
//  1. [manifest] - vessel.toml and package-set.toml loading
//  2. [pkgset] - package set model and dependency resolution
//  3. [fetch] - git/archive materialization and the fetch orchestrator
//  4. [store] - the project-local package cache (.vessel)
//  5. [flags] - compiler flag emission
//
// Supporting packages: [toolchain] downloads pinned compiler releases,
// [integrations/github] talks to the GitHub releases API, [render] draws
// dependency graphs, [cache] holds HTTP responses, [errors] defines the
// structured error codes, and [buildinfo] carries version metadata.
package pkg
