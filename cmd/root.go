package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"
	"text/tabwriter"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/magicbird9803/Unsimplifier-master/pkg/codec"
	"github.com/magicbird9803/Unsimplifier-master/pkg/config"
	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
	"github.com/magicbird9803/Unsimplifier-master/pkg/server"
)

type rootOptions struct {
	Profile bool
	Debug   bool
	Config  string

	cfg   config.Config
	codec *codec.Codec
}

func RootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "elfdata",
		Short:        "elfdata reads and writes the data tables of game ELF objects",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.Config)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			if opts.Debug {
				log.Configure(os.Stdout, slog.LevelDebug, "json")
			} else {
				log.Configure(cmd.ErrOrStderr(), log.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			}

			reg, err := schema.Load()
			if err != nil {
				return err
			}
			opts.codec = codec.New(reg)
			opts.codec.VerifyRoundTrip = cfg.Codec.VerifyRoundTrip

			if opts.Profile {
				file, err := os.Create("cpu.pprof")
				if err != nil {
					return err
				}

				if err := pprof.StartCPUProfile(file); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Profile {
				pprof.StopCPUProfile()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.Profile, "profile", "p", false, "enable profiling")
	rootCmd.PersistentFlags().BoolVarP(&opts.Debug, "debug", "d", false, "enable debugging")
	rootCmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a TOML config file")

	rootCmd.AddCommand(typesCmd(opts))
	rootCmd.AddCommand(schemaCmd(opts))
	rootCmd.AddCommand(dumpCmd(opts))
	rootCmd.AddCommand(buildCmd(opts))
	rootCmd.AddCommand(verifyCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))

	return rootCmd
}

func typesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the file types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tLAYOUT")
			for _, dt := range datatype.FileTypes() {
				name := ""
				if sch, ok := opts.codec.Registry.Lookup(dt); ok {
					name = sch.DisplayName
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", dt, name, layout.For(dt).Strategy)
			}
			return w.Flush()
		},
	}
}

func schemaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <type>",
		Short: "Print the field layout of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := datatype.Parse(args[0])
			if err != nil {
				return err
			}
			sch, err := opts.codec.Registry.Get(dt)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s), 0x%x bytes\n", sch.Type, sch.DisplayName, sch.Size)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OFFSET\tTYPE\tFIELD")
			for _, f := range sch.Fields {
				name := f.Name
				if child, ok := sch.Child(f.Name); ok {
					name += " -> " + child.Type.String()
				}
				fmt.Fprintf(w, "0x%x\t%s\t%s\n", f.Offset, f.Type, name)
			}
			return w.Flush()
		},
	}
}

func dumpCmd(opts *rootOptions) *cobra.Command {
	var output string

	dumpCmd := &cobra.Command{
		Use:   "dump <type> <file>",
		Short: "Print a container as a JSON document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := datatype.Parse(args[0])
			if err != nil {
				return err
			}

			file, err := elf.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()

			doc, err := opts.codec.Dump(dt, file.Data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			if output != "" {
				return os.WriteFile(output, doc, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(append(doc, '\n'))
			return err
		},
	}

	dumpCmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file")
	return dumpCmd
}

func buildCmd(opts *rootOptions) *cobra.Command {
	var output string

	buildCmd := &cobra.Command{
		Use:   "build <type> <base> <document>",
		Short: "Write a JSON document into a copy of a base container",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := datatype.Parse(args[0])
			if err != nil {
				return err
			}

			base, err := elf.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = base.Close() }()

			doc, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}

			out, err := opts.codec.Build(dt, base.Data, doc)
			if err != nil {
				return err
			}

			log.Infof("Wrote %d bytes to %s", len(out), output)
			return os.WriteFile(output, out, 0o644)
		},
	}

	buildCmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	_ = buildCmd.MarkFlagRequired("output")
	return buildCmd
}

func verifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <type> <file>...",
		Short: "Check that files are written back unchanged",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := datatype.Parse(args[0])
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args[1:] {
				report, err := verifyFile(opts.codec, dt, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				status := "ok"
				if !report.Identical {
					status = "differs"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d records\n", path, status, report.Records)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files differ after a round trip", failed, len(args)-1)
			}
			return nil
		},
	}
}

func verifyFile(c *codec.Codec, dt datatype.DataType, path string) (codec.Report, error) {
	file, err := elf.Open(path)
	if err != nil {
		return codec.Report{}, err
	}
	defer func() { _ = file.Close() }()

	return c.Verify(dt, file.Data)
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the codec over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.cfg.Server.Address
			}

			e := server.New(opts.codec, opts.cfg.Server.MaxBodyBytes).Echo()
			log.Infof("Listening on %s", addr)

			sc := echo.StartConfig{Address: addr}
			return sc.Start(cmd.Context(), e)
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the config file)")
	return serveCmd
}
