// stackasm assembles, inspects, runs and stores stack-machine routines.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
	"github.com/chazu/stackasm/pkg/config"
	"github.com/chazu/stackasm/pkg/embedgen"
	"github.com/chazu/stackasm/pkg/store"
	"github.com/chazu/stackasm/pkg/vm"
)

var log = commonlog.GetLogger("stackasm")

func main() {
	verbosity := flag.Int("v", -1, "Log verbosity (overrides stackasm.toml)")
	configDir := flag.String("C", ".", "Directory to search for stackasm.toml")
	width := flag.String("width", "", "Operand width: narrow or wide (overrides stackasm.toml)")
	storePath := flag.String("store", "", "Artifact database path (overrides stackasm.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stackasm [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                          List built-in routines\n")
		fmt.Fprintf(os.Stderr, "  disasm <routine>              Assemble and print a listing\n")
		fmt.Fprintf(os.Stderr, "  run <routine> [args...]       Assemble and call a routine\n")
		fmt.Fprintf(os.Stderr, "  store put <routine>...        Assemble and store, printing digests\n")
		fmt.Fprintf(os.Stderr, "  store ls                      List stored artifacts\n")
		fmt.Fprintf(os.Stderr, "  store show <digest>           Print a stored artifact's listing\n")
		fmt.Fprintf(os.Stderr, "  store run <digest|name> [args...]\n")
		fmt.Fprintf(os.Stderr, "                                Call a stored artifact\n")
		fmt.Fprintf(os.Stderr, "  store rm <digest>             Delete a stored artifact\n")
		fmt.Fprintf(os.Stderr, "  embed [-pkg p] [-o file] <routine>...\n")
		fmt.Fprintf(os.Stderr, "                                Generate Go source embedding routines\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stackasm run sign -3\n")
		fmt.Fprintf(os.Stderr, "  stackasm -width wide disasm clamp\n")
		fmt.Fprintf(os.Stderr, "  stackasm store put answer sum && stackasm store run sum\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fail(err)
	}
	if *width != "" {
		if _, err := bytecode.ParseWidth(*width); err != nil {
			fail(err)
		}
		cfg.Assembler.Width = *width
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		atexit.Exit(2)
	}

	app := &app{cfg: cfg, ctx: context.Background()}
	if err := app.dispatch(args[0], args[1:]); err != nil {
		fail(err)
	}
	atexit.Exit(0)
}

func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default(dir)
	}
	log.Debugf("configuration: width=%s store=%s", cfg.Assembler.Width, cfg.StorePath())
	return cfg, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if f, ok := err.(*vm.Fault); ok {
		fmt.Fprintln(os.Stderr, f.Listing)
	}
	atexit.Exit(1)
}

type app struct {
	cfg   *config.Config
	ctx   context.Context
	store *store.Store
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list()
	case "disasm":
		if len(args) != 1 {
			return fmt.Errorf("usage: stackasm disasm <routine>")
		}
		art, err := a.assemble(args[0])
		if err != nil {
			return err
		}
		fmt.Print(art.Disassemble())
		return nil
	case "run":
		if len(args) < 1 {
			return fmt.Errorf("usage: stackasm run <routine> [args...]")
		}
		art, err := a.assemble(args[0])
		if err != nil {
			return err
		}
		return call(art, args[1:])
	case "store":
		if len(args) < 1 {
			return fmt.Errorf("usage: stackasm store <put|ls|show|run|rm> ...")
		}
		return a.storeCommand(args[0], args[1:])
	case "embed":
		return a.embed(args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) list() error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, name := range sampleNames() {
		fmt.Fprintf(tw, "%s\t%s\n", name, samples[name].about)
	}
	return tw.Flush()
}

func (a *app) assemble(name string) (*asm.Artifact, error) {
	opts := append(a.cfg.AsmOptions(), asm.WithWarnings(func(w asm.Warning) {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", name, w)
	}))
	return buildSample(name, opts...)
}

func call(art *asm.Artifact, raw []string) error {
	r, err := vm.Load(art, nil)
	if err != nil {
		return err
	}
	args := make([]any, len(raw))
	for i, s := range raw {
		args[i] = parseArg(s)
	}
	v, err := r.Call(args...)
	if err != nil {
		return err
	}
	fmt.Println(vm.Format(v))
	return nil
}

// parseArg reads a command-line argument as an integer, a float or, failing
// both, a string.
func parseArg(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.cfg.StorePath())
	if err != nil {
		return nil, err
	}
	atexit.Register(func() {
		if err := s.Close(); err != nil {
			log.Errorf("closing store: %v", err)
		}
	})
	a.store = s
	return s, nil
}

func (a *app) storeCommand(sub string, args []string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}

	switch sub {
	case "put":
		if len(args) == 0 {
			return fmt.Errorf("usage: stackasm store put <routine>...")
		}
		for _, name := range args {
			art, err := a.assemble(name)
			if err != nil {
				return err
			}
			digest, err := s.Put(a.ctx, art)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", digest, name)
		}
		return nil

	case "ls":
		entries, err := s.List(a.ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DIGEST\tNAME\tWIDTH\tSIZE\tSTORED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				e.Digest[:12], e.Name, e.Width, e.Size, e.Created.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()

	case "show":
		if len(args) != 1 {
			return fmt.Errorf("usage: stackasm store show <digest>")
		}
		art, err := s.Get(a.ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Print(art.Disassemble())
		return nil

	case "run":
		if len(args) < 1 {
			return fmt.Errorf("usage: stackasm store run <digest|name> [args...]")
		}
		art, err := a.fetch(s, args[0])
		if err != nil {
			return err
		}
		return call(art, args[1:])

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: stackasm store rm <digest>")
		}
		return s.Delete(a.ctx, args[0])
	}
	return fmt.Errorf("unknown store command %q", sub)
}

// fetch finds an artifact by digest prefix, falling back to its name.
func (a *app) fetch(s *store.Store, ref string) (*asm.Artifact, error) {
	art, err := s.Get(a.ctx, ref)
	if err == nil {
		return art, nil
	}
	art, _, nameErr := s.Latest(a.ctx, ref)
	if nameErr == nil {
		return art, nil
	}
	return nil, err
}

func (a *app) embed(args []string) error {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	pkg := fs.String("pkg", "routines", "Package name of the generated file")
	out := fs.String("o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: stackasm embed [-pkg p] [-o file] <routine>...")
	}

	var embeds []embedgen.Embed
	for _, name := range fs.Args() {
		art, err := a.assemble(name)
		if err != nil {
			return err
		}
		embeds = append(embeds, embedgen.Embed{Artifact: art})
	}

	src, err := embedgen.Generate(*pkg, embeds)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = os.Stdout.Write(src)
		return err
	}
	if err := os.WriteFile(*out, src, 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s)\n", *out, strings.Join(fs.Args(), ", "))
	return nil
}
