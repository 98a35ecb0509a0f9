// Package configs provides embedded configuration templates for docsearch.
//
// Templates are embedded at build time using Go's //go:embed directive so
// they are available in every distribution (source builds and binary
// releases alike).
//
// Configuration hierarchy (see internal/config.Load):
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. User config (~/.config/docsearch/config.yaml)
//  3. Deployment config (.docsearch.yaml in the data directory)
//  4. Environment variables (DOCSEARCH_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration:
// embedding provider and endpoint, suggestion store address, external
// collaborator endpoints, and performance knobs that apply to every
// deployment on the machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// DeploymentConfigTemplate is the template for deployment-level
// configuration: keyword backend selection, hybrid weights, per-tenant
// semantic thresholds, and server transport settings, versioned
// alongside the data directory.
//
//go:embed project-config.example.yaml
var DeploymentConfigTemplate string
