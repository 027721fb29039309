package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/resynth/resynth/report"
	"github.com/resynth/resynth/rpc"
	"github.com/resynth/resynth/version"
)

var (
	address     = flag.String("a", "127.0.0.1", "`address` of the instrument")
	output      = flag.String("o", "", "write the snapshot to `file` instead of standard output")
	templates   = flag.String("t", "", "render the status with the templates in `directory`")
	versionFlag = flag.Bool("v", false, "print version")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("resynth-ctl"))
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	client, err := rpc.Dial(*address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	if err := do(client, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func do(client *rpc.Client, command string, args []string) error {
	switch command {
	case "status":
		data, err := client.Status()
		if err != nil {
			return err
		}
		reporter, err := newReporter()
		if err != nil {
			return err
		}
		text, err := reporter.Render(data)
		if err != nil {
			return err
		}
		fmt.Print(text)
	case "reload":
		var path string
		if len(args) > 0 {
			path = args[0]
		}
		swap, err := client.Reload(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s, %d bytes in %v, loaded in %v\n", swap.Old, swap.New, swap.StateBytes, swap.Took, swap.Load)
		if swap.Migration != "" {
			fmt.Printf("state dropped: %s\n", swap.Migration)
		}
	case "snapshot":
		state, err := client.Snapshot()
		if err != nil {
			return err
		}
		if *output == "" {
			_, err = os.Stdout.Write(state)
			return err
		}
		return os.WriteFile(*output, state, 0644)
	case "restore":
		var (
			state []byte
			err   error
		)
		if len(args) > 0 && args[0] != "-" {
			state, err = os.ReadFile(args[0])
		} else {
			state, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("could not read the snapshot: %w", err)
		}
		return client.Restore(state)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

func newReporter() (*report.Reporter, error) {
	if *templates != "" {
		return report.NewFromTemplates(*templates)
	}
	return report.New()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Resynth-ctl controls a running instrument.\nUsage: %s [flags] command [args]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n  status            print the status\n  reload [artifact] swap in the artifact, or rebuild the current one\n  snapshot          save the state of the program\n  restore [file]    replace the state of the program\n\nFlags:\n")
	flag.PrintDefaults()
}
