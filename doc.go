// Package sfap implements a client for SFAP, a binary, authenticated,
// optionally TLS-encrypted remote filesystem protocol. A Client opens
// one long-lived TCP (or TLS) connection and performs turn-based
// command exchanges over it: every call sends a magic-prefixed command
// id and blocks for the matching reply before the next call may begin.
//
// # Basic Usage
//
//	client, err := sfap.Dial("files.example.com:4470")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Auth("alice", "hunter2"); err != nil {
//	    log.Fatal(err)
//	}
//
// # TLS
//
//	client, err := sfap.Dial("files.example.com:4470",
//	    sfap.WithTLS(&tls.Config{ServerName: "files.example.com"}),
//	)
//
// # File Access
//
// Open a remote file, read from it, and close the descriptor:
//
//	f, err := client.Open("/reports/q1.csv", protocol.OpenRead)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	buf := make([]byte, 4096)
//	n, err := f.Read(buf)
//
// # Error Handling
//
// A failed command turn surfaces as a *sfap.DenialError (the server
// rejected the request at the protocol level — access denied, unknown
// user, and so on) or a *sfap.ClosedError (the connection failed or
// closed mid-turn). A result byte outside its enum's range is also
// reported as a *sfap.DenialError, with Message "invalid result byte";
// the client does not close the connection for it, and no client call
// returns a *wire.FramingError.
package sfap
