// Package arkv implements the transfer orchestration engine behind the
// arkv command: it turns a local file or directory tree into a validated
// upload plan and executes that plan over a single authenticated SSH/SFTP
// session, reproducing the local structure on the remote side.
//
// This package provides:
//   - A path planner that maps local entries to remote paths, ordering
//     every directory before its descendants
//   - A session manager owning one SSH connection and its SFTP sub-channel,
//     with key and password authentication
//   - Idempotent remote directory materialization
//   - A transfer engine with chunked streaming, progress events,
//     partial-failure semantics and a single automatic reconnect
//
// # Basic Usage
//
// Plan an upload and execute it against a destination:
//
//	dest := arkv.Destination{
//		Name:       "backup",
//		Host:       "example.com",
//		Username:   "deploy",
//		KeyPath:    "~/.ssh/id_ed25519",
//		RemoteBase: "/srv/uploads",
//	}
//
//	plan, err := arkv.BuildPlan("./artifacts", dest.RemoteBase)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine := arkv.NewEngine(arkv.NewSessionManager(dest))
//	summary, err := engine.Execute(ctx, plan)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(summary)
//
// # Progress Events
//
// The engine pushes events to a ProgressSink; rendering lives outside the
// engine. Pass a sink to observe per-entry progress:
//
//	engine := arkv.NewEngine(manager, arkv.WithSink(mySink))
//
// A failed file is recorded in the summary and the run continues; only an
// unrecoverable session failure aborts the remaining entries.
package arkv
