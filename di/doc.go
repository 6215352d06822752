// Package di provides explicit, guard-aware composition for Go processes.
//
// The building blocks:
//
//   - Definition: a bean name, an optional Guard and a Factory.
//     Provide[T] builds one from a typed constructor.
//
//   - Assemble: evaluates all guards, then runs active factories in order and
//     publishes an immutable Context. Nothing is published on failure.
//
//   - Resolver / Ref[D]: how a factory obtains beans created before it (or from
//     the parent context). Every reference is recorded and can be inspected
//     through LookupBean[T] (Bean.Deps) or Context.DependenciesOf.
//
//   - NewChild: child contexts see every bean of their ancestors.
//
//   - Registry / MapRegistry: process-wide singletons located or created at
//     most once (Process() is the shared instance).
//
// There is no reflection-driven injection and no automatic graph resolution.
// Declaration order is construction order.
//
// Import
//
//	"github.com/sghaida/xdparent/di"
package di
