// Package xdparent composes the root context of a platform node.
//
// The root context is the parent every admin node, container node and hosted
// module context looks beans up in. Which beans it publishes depends on the
// active profiles and a few feature flags:
//
//   - parent: the composition policy and Compose
//   - di: bean definitions, guarded assembly, published contexts, child contexts
//   - env: profiles and the relaxed property table, loaded from YAML, environment and overrides
//   - cloud: cloud runtime discovery and service bindings (Cloud Foundry)
//   - connector: datastore (MySQL, PostgreSQL) and broker (RabbitMQ) connectors
//   - mgmt: the process management server and the context exporter
//   - health, routing: the health endpoint and the routing facade
//
// cmd/xd-parent describes or serves the composed context.
package xdparent
