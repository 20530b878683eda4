// Package tasks resolves free-text track names into playlist additions and follows the artists of a playlist,
// reporting progress over channels.
//
// # Core Operations
//
//  1. [Resolver.Resolve] : one tracklist entry
//     - Searches the catalog with a "track:" query
//     - Scores candidates with the fuzzy [matcher.Matcher]
//     - Adds the best confident match through the [Mutator]
//     - Falls back to a local yt-dlp download when nothing matches
//
//  2. [Pipeline.Run] : a whole tracklist
//     - Resolves entries strictly one after another
//     - Never stops on a failed entry
//     - Returns a [RunResult] with one [Outcome] per input, in input order
//
//  3. [Collector.CollectAndFollow] : artists of a playlist
//     - Pages through the playlist items
//     - Collects distinct artist ids in first-seen order
//     - Follows them in requests of at most [DefaultFollowChunk] ids
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends use select with default so a slow or
// missing reader never blocks a run.
//
// # Credentials
//
// A [CredentialSource] is asked for a credential before every catalog call. Tasks never cache tokens.
package tasks
