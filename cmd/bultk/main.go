// Command bultk lists, extracts, creates and inspects the series'
// proprietary archive files, and assembles/disassembles their script
// subroutines.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v2"

	"github.com/reimuhak/bultk/archive"
	"github.com/reimuhak/bultk/archive/v2"
	"github.com/reimuhak/bultk/archive/v6v7"
	"github.com/reimuhak/bultk/archive/v75"
	"github.com/reimuhak/bultk/archive/v8v9"
	"github.com/reimuhak/bultk/archive/v95plus"
	"github.com/reimuhak/bultk/internal/cp932"
	"github.com/reimuhak/bultk/opcode"
	"github.com/reimuhak/bultk/script/eclmap"
	"github.com/reimuhak/bultk/script/lift"
	"github.com/reimuhak/bultk/script/lower"
)

// moduleFor dispatches a version number to its archive.Module, per
// SPEC_FULL.md §3.6's five-family split.
func moduleFor(version uint) (archive.Module, error) {
	switch {
	case version >= 2 && version <= 5:
		return v2.Module{}, nil
	case version == 6 || version == 7:
		return v6v7.Module{}, nil
	case version == 75:
		return v75.Module{}, nil
	case version == 8 || version == 9:
		return v8v9.Module{}, nil
	default:
		return v95plus.Module{}, nil
	}
}

func openArchive(file string, version uint) (archive.Module, *archive.Archive, *os.File, error) {
	f, err := os.OpenFile(file, os.O_RDWR, 0644)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := moduleFor(version)
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	a, err := m.Open(f, version)
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	return m, a, f, nil
}

func listArchive(file string, version uint, sjis bool) error {
	_, a, f, err := openArchive(file, version)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("Version     %d\n", a.Version)
	fmt.Printf("Num Entries %d\n", len(a.Entries))
	fmt.Println()
	fmt.Println("Name                             Size     Zsize    Offset")
	for _, e := range a.Entries {
		name := e.Name
		if sjis {
			// Entry names are stored as raw CP932 bytes reinterpreted as a Go
			// string; re-decode them properly for display when requested.
			if decoded, err := cp932.ToUTF8([]byte(name)); err == nil {
				name = decoded
			}
		}
		fmt.Printf("%-32s %-8d %-8d %-8d\n", name, e.Size, e.Zsize, e.Offset)
	}
	return nil
}

func extractEntry(file string, version uint, name, outDir string) error {
	m, a, f, err := openArchive(file, version)
	if err != nil {
		return err
	}
	defer f.Close()

	e, ok := a.ByName(name)
	if !ok {
		return fmt.Errorf("no such entry %q", name)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(outDir, filepath.Base(name)))
	if err != nil {
		return err
	}
	defer out.Close()

	return m.Extract(a, e, out)
}

func extractAllEntries(file string, version uint, outDir string) error {
	m, a, f, err := openArchive(file, version)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	return archive.ExtractAll(m, a, func(e *archive.Entry) (io.WriteCloser, error) {
		return os.Create(filepath.Join(outDir, filepath.Base(e.Name)))
	})
}

func createArchive(file string, version uint, inputs []string) error {
	m, err := moduleFor(version)
	if err != nil {
		return err
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := m.Create(f, version, len(inputs))
	if err != nil {
		return err
	}
	for _, path := range inputs {
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		err = m.Write(a, filepath.Base(path), in)
		in.Close()
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return m.Close(a)
}

func detectVersion(file string) error {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}
	c := archive.Detect(data)
	c = archive.DetectFilename(c, file)

	versions := c.Versions()
	if len(versions) == 0 {
		return fmt.Errorf("no known archive version matches %s", file)
	}
	fmt.Printf("Candidate versions: %v\n", versions)
	return nil
}

func loadEclmap(path string) (*eclmap.Map, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := eclmap.New()
	if err := eclmap.Load(f, m, true); err != nil {
		return nil, err
	}
	return m, nil
}

func disassembleSub(file string, version uint, mapPath string) error {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}
	names, err := loadEclmap(mapPath)
	if err != nil {
		return err
	}

	sub, err := lift.DecodeSub(data, version, opcode.New())
	if err != nil {
		return err
	}
	fmt.Print(lift.EmitTextNamed(sub, version, names))
	return nil
}

func assembleSub(file string, version uint, outFile string) error {
	src, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}
	sub, err := lower.Assemble(string(src), version)
	if err != nil {
		return err
	}
	if err := lower.Fixup(sub); err != nil {
		return err
	}
	data, err := lower.EncodeSub(sub)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(outFile, data, 0644)
}

func main() {
	app := cli.NewApp()
	app.Name = "bultk"
	app.Usage = "Extract/create series archives and assemble/disassemble script subroutines"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}

	versionFlag := &cli.UintFlag{Name: "version", Aliases: []string{"v"}, Required: true, Usage: "archive/script format version, e.g. 95, 125, 13"}

	app.Commands = []*cli.Command{
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "List an archive's entries",
			ArgsUsage: "archive",
			Flags: []cli.Flag{
				versionFlag,
				&cli.BoolFlag{Name: "sjis", Usage: "decode entry names as CP932 before printing"},
			},
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return cli.Exit("Insufficient arguments", 1)
				}
				err := listArchive(c.Args().First(), c.Uint("version"), c.Bool("sjis"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "extract",
			Aliases:   []string{"x"},
			Usage:     "Extract one entry from an archive",
			ArgsUsage: "archive entry",
			Flags: []cli.Flag{
				versionFlag,
				&cli.StringFlag{Name: "outdir", Value: ".", Usage: "output directory"},
			},
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 2 {
					return cli.Exit("Insufficient arguments", 1)
				}
				err := extractEntry(c.Args().Get(0), c.Uint("version"), c.Args().Get(1), c.String("outdir"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "extract-all",
			Aliases:   []string{"xa"},
			Usage:     "Extract every entry from an archive, in parallel",
			ArgsUsage: "archive",
			Flags: []cli.Flag{
				versionFlag,
				&cli.StringFlag{Name: "outdir", Value: ".", Usage: "output directory"},
			},
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return cli.Exit("Insufficient arguments", 1)
				}
				err := extractAllEntries(c.Args().First(), c.Uint("version"), c.String("outdir"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "create",
			Aliases:   []string{"c"},
			Usage:     "Create an archive from a list of input files",
			ArgsUsage: "archive file [file ...]",
			Flags:     []cli.Flag{versionFlag},
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 2 {
					return cli.Exit("Insufficient arguments", 1)
				}
				err := createArchive(c.Args().First(), c.Uint("version"), c.Args().Tail())
				if err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "detect",
			Usage:     "Guess the archive version of a file",
			ArgsUsage: "file",
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return cli.Exit("Insufficient arguments", 1)
				}
				if err := detectVersion(c.Args().First()); err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "disasm",
			Usage:     "Disassemble a raw subroutine body to DSL text",
			ArgsUsage: "file",
			Flags: []cli.Flag{
				versionFlag,
				&cli.StringFlag{Name: "map", Usage: "optional !eclmap mnemonic file"},
			},
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 1 {
					return cli.Exit("Insufficient arguments", 1)
				}
				err := disassembleSub(c.Args().First(), c.Uint("version"), c.String("map"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "asm",
			Usage:     "Assemble DSL text into a raw subroutine body",
			ArgsUsage: "file.ecl out.bin",
			Flags:     []cli.Flag{versionFlag},
			Action: func(c *cli.Context) error {
				if c.Args().Len() < 2 {
					return cli.Exit("Insufficient arguments", 1)
				}
				err := assembleSub(c.Args().Get(0), c.Uint("version"), c.Args().Get(1))
				if err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
