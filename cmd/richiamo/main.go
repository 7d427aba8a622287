package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/richiamo"
)

type options struct {
	symbolFile string
	format     string
	timed      bool
	recoverAll bool
	recover    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "richiamo <binary>",
		Short: "Recover control-flow and call graphs from a compiled binary",
		Long: `richiamo disassembles an ELF binary, recovers a control-flow graph for
every requested entry point, assembles the recovered functions into a
call graph, and exports it as DOT, PNG, or PDF.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.symbolFile, "symbol-file", "s", "",
		"load symbols from a text listing instead of the binary")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot",
		"output format (dot|png|pdf)")
	cmd.Flags().BoolVarP(&opts.timed, "time", "t", false,
		"print wall-clock duration")
	cmd.Flags().BoolVarP(&opts.recoverAll, "recover-all", "a", false,
		"recover every symbol (default)")
	cmd.Flags().StringVarP(&opts.recover, "recover", "r", "",
		"comma-separated hex addresses to recover")
	cmd.MarkFlagsMutuallyExclusive("recover-all", "recover")

	return cmd
}

// newLogger builds the operator-facing console logger: progress lines are
// prefixed [+], warnings and failures [-].
func newLogger() zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    true,
		PartsOrder: []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatLevel: func(i interface{}) string {
			if lvl, ok := i.(string); ok {
				switch lvl {
				case zerolog.LevelWarnValue, zerolog.LevelErrorValue, zerolog.LevelFatalValue:
					return "[-]"
				}
			}
			return "[+]"
		},
	}
	return zerolog.New(out)
}

func run(opts *options, filename string) error {
	start := time.Now()
	log := newLogger()

	format, err := richiamo.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	mode := richiamo.EntryAll
	var subset []uint64
	if opts.recover != "" {
		subset, err = richiamo.ParseAddrList(opts.recover)
		if err != nil {
			return err
		}
		mode = richiamo.EntrySubset
	}

	bin, err := richiamo.OpenELF(filename)
	if err != nil {
		return err
	}

	var st richiamo.SymbolTable
	if opts.symbolFile != "" {
		st, err = richiamo.LoadSymbolFile(opts.symbolFile)
	} else {
		st, err = bin.Symbols()
	}
	if err != nil {
		return err
	}

	pipe := &richiamo.Pipeline{
		Backend: bin,
		Log:     log,
		Progress: func(entry uint64, name, size string) {
			log.Info().Msgf("recovering function 0x%x (name: %s, size: %s)", entry, name, size)
		},
	}

	cg, recovered, err := pipe.Run(mode, subset, st)
	if err != nil {
		return err
	}

	out := richiamo.OutputPath(filename, format)
	if err := richiamo.Export(cg, format, out); err != nil {
		return err
	}

	log.Info().Msgf("recovered %d control flow graphs", recovered)
	log.Info().Msgf("call graph written to %s", out)
	if opts.timed {
		log.Info().Msgf("elapsed: %s", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		os.Exit(1)
	}
}
