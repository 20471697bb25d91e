// Command sfap is an interactive-ish SFAP client command runner: ls,
// get, put, info, and mkauth (a passwd-file entry generator for
// server/fsauth) as Cobra subcommands sharing a common --addr/--user/
// --password flag set.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweet-bbq-sauce/sfap"
	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/server/fsauth"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, user, password string

	root := &cobra.Command{
		Use:   "sfap",
		Short: "SFAP client command runner",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "localhost:4470", "server address")
	root.PersistentFlags().StringVar(&user, "user", "", "username")
	root.PersistentFlags().StringVar(&password, "password", "", "password")

	connect := func() (*sfap.Client, error) {
		c, err := sfap.Dial(addr, sfap.WithTimeout(15*time.Second))
		if err != nil {
			return nil, err
		}
		if user != "" {
			if err := c.Auth(user, password); err != nil {
				c.Close()
				return nil, err
			}
		}
		return c, nil
	}

	root.AddCommand(newLsCmd(connect))
	root.AddCommand(newGetCmd(connect))
	root.AddCommand(newPutCmd(connect))
	root.AddCommand(newInfoCmd(connect))
	root.AddCommand(newMkauthCmd())

	return root
}

func newLsCmd(connect func() (*sfap.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "list a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.Ls(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%-6s %10d  %s\n", e.Type.String(), e.Size, e.Path)
			}
			return nil
		},
	}
}

func newGetCmd(connect func() (*sfap.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "download a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			remote, local := args[0], args[1]
			f, err := c.Open(remote, protocol.OpenRead)
			if err != nil {
				return err
			}
			defer f.Close()

			out, err := os.Create(local)
			if err != nil {
				return err
			}
			defer out.Close()

			buf := make([]byte, 64*1024)
			for {
				n, rerr := f.Read(buf)
				if n > 0 {
					if _, werr := out.Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if rerr != nil {
					return rerr
				}
				if n == 0 {
					break
				}
			}
			return nil
		},
	}
}

func newPutCmd(connect func() (*sfap.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			local, remote := args[0], args[1]
			in, err := os.Open(local)
			if err != nil {
				return err
			}
			defer in.Close()

			f, err := c.Open(remote, protocol.OpenWrite|protocol.OpenTrunc)
			if err != nil {
				return err
			}
			defer f.Close()

			buf := make([]byte, 64*1024)
			for {
				n, rerr := in.Read(buf)
				if n > 0 {
					if _, werr := f.Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if rerr != nil {
					if rerr == io.EOF {
						break
					}
					return rerr
				}
			}
			return nil
		},
	}
}

func newInfoCmd(connect func() (*sfap.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "print the server info table",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			info, err := c.ServerInfo()
			if err != nil {
				return err
			}
			for k, v := range info {
				fmt.Printf("%s: %s\n", k, v)
			}
			return nil
		},
	}
}

func newMkauthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkauth <user> <password> <root>",
		Short: "print a server/fsauth passwd-file line for the given credentials",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := fsauth.HashPassword(args[1])
			if err != nil {
				return err
			}
			line := fmt.Sprintf("%s:%s:%s", args[0], hash, args[2])
			if len(args) == 4 {
				line += ":" + args[3]
			}
			fmt.Println(line)
			return nil
		},
	}
}
