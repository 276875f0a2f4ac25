// Package gen assembles and writes DAO implementations for repository
// interfaces found by the loader.
//
// # Pipeline
//
//	//dao: directives on interfaces (compiler/load)
//	        ↓
//	   converter registry, nullness resolver (compiler/convert, compiler/nullness)
//	        ↓
//	   Plan: one Impl per repository, one MethodImpl per method
//	        ↓
//	   Write: jennifer files formatted with goimports, in parallel
//
// Resolution is sequential and happens entirely in Plan. Write only renders
// the code trees Plan built, so files are rendered concurrently.
//
// # Failure model
//
// A method that cannot be generated does not fail the run. Its body is
// replaced by a stub that returns (or panics with) a *daogen.GenerationError
// carrying the diagnostics, and the diagnostics are reported to the
// configured diag.Sink. Plan.OK reports whether every method was generated.
//
// Run-level failures are returned as errors:
//
//   - ConfigError: an invalid option or daogen.yaml value
//   - LoadError: the packages could not be loaded or type-checked
//   - GenerationError: a file could not be rendered or written
//   - InternalError: a broken generator invariant
//
// # Configuration
//
// Configuration is done via the functional options pattern:
//
//	g, err := gen.NewGenerator(
//	    gen.WithDialect("postgres"),
//	    gen.WithOptionalConfigFile(gen.ConfigFile),
//	    gen.WithDefault("timeout", "5s"),
//	)
//	plan, err := g.Generate(ctx, "./store/...")
//
// Method settings are merged from three levels, the most specific winning:
// process defaults (WithDefault and daogen.yaml), //dao:config on the
// repository, and //dao:config on the method.
//
// # Verification
//
// Generator.Verify prepares every planned statement on a live database,
// which catches statements that parse but do not match the schema.
package gen
