package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/log"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/protocols"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/store"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
	zkvm "github.com/vybium/vybium-fleet-zkvm/pkg/vybium-fleet-zkvm"
)

func cmdBuild(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var output string
	fs.StringVar(&output, "o", "", "Output .vimg path")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() != 1 || output == "" {
		fmt.Fprintln(errOut, "usage: vybium-fleet build -o <out.vimg> <src.vasm>")
		return exitFailure
	}
	img, err := guest.LoadSource(fs.Arg(0))
	if err != nil {
		return fail(errOut, err)
	}
	if err := guest.Save(output, img); err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintln(out, img.ID().Hex())
	return exitOK
}

func cmdID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("id", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: vybium-fleet id <image>")
		return exitFailure
	}
	img, err := loadImage(fs.Arg(0))
	if err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintln(out, img.ID().Hex())
	fmt.Fprintln(out, img.ID().CID())
	return exitOK
}

func cmdKeygen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyPath, pubPath, schemeName string
	var force bool
	fs.StringVar(&keyPath, "out", "", "Secret key path")
	fs.StringVar(&pubPath, "pub", "", "Public key path (default <out>.pub)")
	fs.StringVar(&schemeName, "scheme", utils.SchemeEd25519, "Seal scheme: ed25519 or dilithium3")
	fs.BoolVar(&force, "force", false, "Overwrite an existing key")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if keyPath == "" {
		fmt.Fprintln(errOut, "usage: vybium-fleet keygen --out <key> [--pub <key.pub>] [--scheme ed25519|dilithium3] [--force]")
		return exitFailure
	}
	if pubPath == "" {
		pubPath = keyPath + ".pub"
	}
	scheme, err := protocols.ParseScheme(schemeName)
	if err != nil {
		return fail(errOut, err)
	}
	signer, err := zkvm.GenerateSigner(scheme, nil)
	if err != nil {
		return fail(errOut, err)
	}
	if err := protocols.SaveSigner(keyPath, signer, force); err != nil {
		return fail(errOut, fmt.Errorf("write key: %w", err))
	}
	if err := protocols.SavePublicKey(pubPath, signer); err != nil {
		return fail(errOut, fmt.Errorf("write public key: %w", err))
	}
	fmt.Fprintln(out, signer.KeyID().Hex())
	return exitOK
}

func cmdExec(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var in inputFlags
	var rt runtimeFlags
	in.register(fs)
	rt.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, logger, err := rt.load(errOut)
	if err != nil {
		return fail(errOut, err)
	}
	// exec never seals, an ephemeral key satisfies the host
	signer, err := zkvm.GenerateSigner(protocols.SchemeEd25519, nil)
	if err != nil {
		return fail(errOut, err)
	}
	cfg.SealScheme = utils.SchemeEd25519
	h, err := zkvm.NewHost(cfg, signer, zkvm.WithLogger(logger.Module("host")))
	if err != nil {
		return fail(errOut, err)
	}
	img, bundle, _, err := in.load(h)
	if err != nil {
		return fail(errOut, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ex, err := h.Execute(ctx, img, bundle)
	if err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintf(out, "image_id: %s\n", ex.ImageID.Hex())
	fmt.Fprintf(out, "exit_code: %d\n", ex.ExitCode)
	fmt.Fprintf(out, "cycles: %d\n", ex.Cycles)
	fmt.Fprintf(out, "padded_height: %d\n", ex.PaddedHeight)
	fmt.Fprintf(out, "journal: %s\n", hex.EncodeToString(ex.Journal))
	return exitOK
}

func cmdProve(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("prove", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var in inputFlags
	var rt runtimeFlags
	var keyPath, output, location, envelope string
	in.register(fs)
	rt.register(fs)
	fs.StringVar(&keyPath, "key", "", "Seal secret key path")
	fs.StringVar(&output, "out", "", "Receipt output path")
	fs.StringVar(&location, "store", "", "Receipt store: directory or redis:// URL")
	fs.StringVar(&envelope, "envelope", "", "Write the signed fleet move envelope to this path (needs --move)")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if keyPath == "" || (output == "" && location == "") {
		fmt.Fprintln(errOut, "usage: vybium-fleet prove --image <image> --key <key> (--out <receipt> | --store <loc>) [inputs]")
		return exitFailure
	}

	signer, err := protocols.LoadSigner(keyPath)
	if err != nil {
		return fail(errOut, err)
	}
	cfg, logger, err := rt.load(errOut)
	if err != nil {
		return fail(errOut, err)
	}
	if rt.config == "" {
		cfg.SealScheme = signer.Scheme().String()
	}
	h, err := zkvm.NewHost(cfg, signer, zkvm.WithLogger(logger.Module("host")))
	if err != nil {
		return fail(errOut, err)
	}
	img, bundle, mv, err := in.load(h)
	if err != nil {
		return fail(errOut, err)
	}
	if envelope != "" && mv == nil {
		fmt.Fprintln(errOut, "--envelope needs --move")
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rc, err := h.Prove(ctx, img, bundle)
	if err != nil {
		return fail(errOut, err)
	}

	if output != "" {
		if err := os.WriteFile(output, rc.Encode(), 0o644); err != nil {
			return fail(errOut, fmt.Errorf("write receipt: %w", err))
		}
		logger.Info("receipt written", "path", output, "bytes", len(rc.Encode()))
	}
	if location != "" {
		cas, err := store.Open(location)
		if err != nil {
			return fail(errOut, err)
		}
		id, err := store.PutReceipt(ctx, cas, rc)
		if err != nil {
			return fail(errOut, err)
		}
		fmt.Fprintf(out, "cid: %s\n", id)
	}
	if mv != nil {
		fmt.Fprintf(out, "random: %s\n", mv.random())
		if envelope != "" {
			env := zkvm.Envelope(mv.command, rc, mv.random())
			raw, err := fleetcore.Encode(&env)
			if err != nil {
				return fail(errOut, err)
			}
			if err := os.WriteFile(envelope, raw, 0o644); err != nil {
				return fail(errOut, fmt.Errorf("write envelope: %w", err))
			}
		}
	}
	fmt.Fprintf(out, "image_id: %s\n", rc.ImageID.Hex())
	fmt.Fprintf(out, "journal: %s\n", hex.EncodeToString(rc.Journal))
	return exitOK
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var imageRef, location, id, logLevel string
	var pubs listFlag
	fs.StringVar(&imageRef, "image", "", "Expected guest image")
	fs.Var(&pubs, "pub", "Trusted seal public key path (repeatable)")
	fs.StringVar(&location, "store", "", "Receipt store: directory or redis:// URL")
	fs.StringVar(&id, "cid", "", "Receipt CID in --store")
	fs.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	fromStore := location != "" && id != ""
	if imageRef == "" || len(pubs) == 0 || (fs.NArg() != 1 && !fromStore) {
		fmt.Fprintln(errOut, "usage: vybium-fleet verify --image <image> --pub <key.pub> (<receipt> | --store <loc> --cid <cid>)")
		return exitFailure
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fail(errOut, err)
	}
	logger := log.NewWriter(errOut, level)

	img, err := loadImage(imageRef)
	if err != nil {
		return fail(errOut, err)
	}
	keys := zkvm.NewKeyRing()
	for _, path := range pubs {
		k, err := protocols.LoadPublicKey(path)
		if err != nil {
			return fail(errOut, err)
		}
		keys.Add(k)
	}

	var raw []byte
	if fromStore {
		c, err := cid.Decode(id)
		if err != nil {
			return fail(errOut, fmt.Errorf("%w: %v", store.ErrInvalidCID, err))
		}
		cas, err := store.Open(location)
		if err != nil {
			return fail(errOut, err)
		}
		if raw, err = cas.Get(context.Background(), c); err != nil {
			return fail(errOut, err)
		}
	} else if raw, err = os.ReadFile(fs.Arg(0)); err != nil {
		return fail(errOut, fmt.Errorf("read receipt: %w", err))
	}

	v := zkvm.NewVerifier(keys, zkvm.WithVerifierLogger(logger.Module("verifier")))
	rc, err := zkvm.DecodeReceipt(raw)
	if err != nil {
		fmt.Fprintf(out, "rejected: %v\n", err)
		return exitRejected
	}
	res := v.VerifyImage(rc, img)
	journal, ok := res.Journal()
	if !ok {
		fmt.Fprintf(out, "rejected: %s\n", res.Reason)
		return exitRejected
	}
	fmt.Fprintln(out, "accepted")
	fmt.Fprintf(out, "journal: %s\n", hex.EncodeToString(journal))
	if s := describeJournal(img.Name, journal); s != "" {
		fmt.Fprintf(out, "decoded: %s\n", s)
	}
	return exitOK
}

// runtimeFlags are the host settings shared by exec and prove
type runtimeFlags struct {
	config   string
	logLevel string
}

func (f *runtimeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "YAML host configuration")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func (f *runtimeFlags) load(errOut io.Writer) (*utils.Config, *log.Logger, error) {
	level, err := log.ParseLevel(f.logLevel)
	if err != nil {
		return nil, nil, utils.NewError(utils.ErrInvalidConfig, err, "log level")
	}
	cfg := utils.DefaultConfig()
	if f.config != "" {
		if cfg, err = utils.LoadConfig(f.config); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, nil, err
	}
	return cfg, log.NewWriter(errOut, level), nil
}

// inputFlags select the guest and its inputs
type inputFlags struct {
	image   string
	public  string
	private string
	move    string
}

func (f *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.image, "image", "", "Guest image: builtin name, .vasm or .vimg")
	fs.StringVar(&f.public, "public", "", "Comma separated public input words")
	fs.StringVar(&f.private, "private", "", "Comma separated private input words")
	fs.StringVar(&f.move, "move", "", "YAML fleet move; selects the guest for its command")
}

func (f *inputFlags) load(h *zkvm.Host) (*zkvm.Image, *zkvm.Bundle, *moveFile, error) {
	if f.move != "" {
		mv, err := readMove(f.move)
		if err != nil {
			return nil, nil, nil, err
		}
		img, err := guest.ForCommand(mv.command)
		if err != nil {
			return nil, nil, nil, utils.NewError(utils.ErrImageLoad, err, "guest for %s", mv.command)
		}
		bundle, err := h.FleetBundle(mv.inputs)
		if err != nil {
			return nil, nil, nil, err
		}
		return img, bundle, mv, nil
	}

	if f.image == "" {
		return nil, nil, nil, utils.NewError(utils.ErrInvalidInput, nil, "--image or --move is required")
	}
	img, err := loadImage(f.image)
	if err != nil {
		return nil, nil, nil, err
	}
	public, err := parseWords(f.public)
	if err != nil {
		return nil, nil, nil, err
	}
	private, err := parseWords(f.private)
	if err != nil {
		return nil, nil, nil, err
	}
	bundle, err := zkvm.NewInputBuilder().PublicWords(public...).PrivateWords(private...).Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return img, bundle, nil, nil
}

// loadImage resolves a builtin name, a .vasm source or a .vimg artifact
func loadImage(ref string) (*zkvm.Image, error) {
	switch {
	case strings.HasSuffix(ref, ".vasm"):
		return guest.LoadSource(ref)
	case strings.HasSuffix(ref, ".vimg"):
		return guest.Load(ref)
	}
	img, err := guest.Builtin(ref)
	if err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "image %s", ref)
	}
	return img, nil
}

func parseWords(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	words := make([]uint64, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.ParseUint(strings.TrimSpace(p), 0, 64)
		if err != nil {
			return nil, utils.NewError(utils.ErrInvalidInput, err, "input word %q", p)
		}
		words = append(words, w)
	}
	return words, nil
}

// listFlag collects a repeated string flag
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}
