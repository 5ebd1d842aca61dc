// latebind CLI - serve a persistent object store and poke at it remotely
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/latebind/config"
	"github.com/chazu/latebind/dispatch"
	"github.com/chazu/latebind/store"
	"github.com/chazu/latebind/wire"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")
	serveMode := flag.Bool("serve", false, "Start the object server")
	addr := flag.String("addr", "", "Override the configured address")
	storePath := flag.String("store", "", "Override the configured store path (used with --serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lb [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands operate on dotted paths rooted at the server's root object.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lb --serve                      # Serve the configured store\n")
		fmt.Fprintf(os.Stderr, "  lb get settings.volume          # Read a property\n")
		fmt.Fprintf(os.Stderr, "  lb set settings.volume 7        # Write a property\n")
		fmt.Fprintf(os.Stderr, "  lb call settings.remove volume  # Call a method\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	level := cfg.Log.Verbosity
	if *verbosity > level {
		level = *verbosity
	}
	commonlog.Configure(level, nil)

	if *serveMode {
		path := cfg.StorePath()
		if *storePath != "" {
			path = *storePath
		}
		listen := cfg.Server.Listen
		if *addr != "" {
			listen = *addr
		}
		if err := serve(listen, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	address := cfg.Client.Address
	if *addr != "" {
		address = *addr
	}
	if err := runCommand(address, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(listen, storePath string) error {
	st, err := store.Open(storePath)
	if err != nil {
		return err
	}
	defer st.Close()
	if _, err := st.Root(); err != nil {
		return err
	}

	l, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	fmt.Printf("Serving %s on %s\n", storePath, listen)
	return wire.NewServer(st).Serve(l)
}

func runCommand(address, command string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s needs a path", command)
	}

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("cannot reach server at %s: %w", address, err)
	}
	client := wire.NewClient(conn)
	defer client.Close()

	// The server pins its root at handle 1; take our own reference to it.
	client.AddRef(1)
	root := dispatch.NewObjectRef(client, 1)
	defer root.Release()

	segments := strings.Split(args[0], ".")
	target, err := walkPath(root, segments[:len(segments)-1])
	if err != nil {
		return err
	}
	defer target.Release()
	leaf := dispatch.Name(segments[len(segments)-1])

	switch command {
	case "get":
		v, err := target.Get(leaf)
		if err != nil {
			return err
		}
		fmt.Println(formatValue(v))
		v.Release()
		return nil

	case "set":
		if len(args) != 2 {
			return fmt.Errorf("set needs a path and a value")
		}
		return target.Set(leaf, parseValue(args[1]))

	case "call":
		callArgs := make([]dispatch.Value, len(args)-1)
		for i, a := range args[1:] {
			callArgs[i] = parseValue(a)
		}
		v, err := target.Invoke(leaf, callArgs...)
		if err != nil {
			return err
		}
		fmt.Println(formatValue(v))
		v.Release()
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// walkPath descends from ref through the named object properties, releasing
// every intermediate reference behind itself. The returned reference is the
// caller's to release. An empty path clones ref so the caller always owns
// what it gets back.
func walkPath(ref *dispatch.ObjectRef, segments []string) (*dispatch.ObjectRef, error) {
	current, err := ref.Clone()
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		next, err := current.GetRef(dispatch.Name(seg))
		if err != nil {
			current.Release()
			return nil, fmt.Errorf("at %q: %w", seg, err)
		}
		current.Release()
		current = next
	}
	return current, nil
}

// parseValue reads a command-line argument as the narrowest literal it
// matches. Anything that is not a bool, integer, or float is a string.
func parseValue(s string) dispatch.Value {
	switch s {
	case "true":
		return dispatch.FromBool(true)
	case "false":
		return dispatch.FromBool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return dispatch.FromInt64(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return dispatch.FromFloat64(f)
	}
	return dispatch.FromString(s)
}

func formatValue(v dispatch.Value) string {
	switch v.Kind() {
	case dispatch.KindEmpty:
		return "(empty)"
	case dispatch.KindString, dispatch.KindWideString:
		s, _ := v.AsString()
		return s
	default:
		return v.String()
	}
}
