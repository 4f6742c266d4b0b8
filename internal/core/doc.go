// Package core is the application layer of the results service.
//
// A [Service] is built once in main and handed to the HTTP server. It owns
// no global state: the rate engine client, the analysis repository, the
// result cache and the analysis limiter are all injected.
//
// # Running an analysis
//
// [Service.RunAnalysis] validates the column mapping and rate settings,
// waits for a slot in the [AnalysisLimiter], calls the rate engine,
// normalizes the returned rows and summary, stores the analysis and warms
// the cache.
//
// # Reading results
//
// [Service.ResultView] and [Service.ExportResults] load an analysis through
// the cache (concurrent misses for one ID share a single database read) and
// run the pure pipeline in package results over its rows.
//
// # Errors
//
// Technical errors are mapped to user-facing messages with [MapError] and to
// HTTP statuses with [HTTPStatus].
//
// # Retention
//
// [Service.StartRetentionScheduler] purges analyses older than the configured
// number of days, in batches, once at startup and then periodically.
package core
