package main

import (
	"fmt"
	"io"
	"os"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// Exit statuses
const (
	exitOK       = 0
	exitFailure  = 1
	exitAbort    = 2
	exitProving  = 3
	exitImage    = 4
	exitRejected = 5
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return exitFailure
	}

	switch args[0] {
	case "build":
		return cmdBuild(args[1:], out, errOut)
	case "id":
		return cmdID(args[1:], out, errOut)
	case "keygen":
		return cmdKeygen(args[1:], out, errOut)
	case "exec":
		return cmdExec(args[1:], out, errOut)
	case "prove":
		return cmdProve(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return exitOK
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "vybium-fleet: prove and verify fleet guest runs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  vybium-fleet build -o <out.vimg> <src.vasm>")
	fmt.Fprintln(w, "  vybium-fleet id <image>")
	fmt.Fprintln(w, "  vybium-fleet keygen --out <key> [--pub <key.pub>] [--scheme ed25519|dilithium3] [--force]")
	fmt.Fprintln(w, "  vybium-fleet exec --image <image> [--public <w,...>] [--private <w,...>] [--move <move.yaml>]")
	fmt.Fprintln(w, "  vybium-fleet prove --image <image> --key <key> [--out <receipt>] [--store <dir|redis://...>] [--config <file>] [inputs as exec]")
	fmt.Fprintln(w, "  vybium-fleet verify --image <image> --pub <key.pub> (<receipt> | --store <loc> --cid <cid>)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - <image> is a builtin name (adder, join, fire, report, wave, win), a .vasm source or a .vimg artifact")
	fmt.Fprintln(w, "  - --move reads fleet inputs from YAML; the guest is chosen by its command field")
	fmt.Fprintln(w, "  - exit status: 1 failure, 2 guest abort, 3 proving failure, 4 image load error, 5 rejected")
}

// exitCode maps a pipeline error to the process exit status
func exitCode(err error) int {
	switch utils.CodeOf(err) {
	case utils.ErrGuestAbort:
		return exitAbort
	case utils.ErrProvingFailure:
		return exitProving
	case utils.ErrImageLoad:
		return exitImage
	case utils.ErrVerificationRejected:
		return exitRejected
	default:
		return exitFailure
	}
}

func fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitCode(err)
}
