// Package server implements the SFAP server runtime: the command
// registry, the per-connection session state machine, the acceptor and
// reaper, the vanilla command set, and the middleware contracts embedders
// supply for authentication and command authorization.
//
// A minimal server:
//
//	store, err := fsauth.NewStore("/etc/sfapd/passwd")
//	srv, err := server.ListenAndServe(":4470",
//		server.WithAuthMiddleware(store.Middleware()),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Shutdown(context.Background())
package server
