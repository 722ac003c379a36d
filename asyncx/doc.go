// Package asyncx is the background execution layer: a thin, opinionated
// layer on top of asynq to dispatch background jobs and poll their live
// state.
//
// Quick start:
//  1. Build a redis.UniversalClient (go-redis v9) shared by both sides.
//  2. Create a Client with NewClient(rdb, ...). Submit jobs with Submit and
//     observe them with Poll.
//  3. Create a Processor and register handlers via asynq.ServeMux, usually
//     built with HandleJSON.
//  4. Start the processor; it logs every job's start and finish.
//
// Completed jobs are retained for ClientOptions.Retention so that Poll can
// still report their result after the handler returned.
package asyncx
