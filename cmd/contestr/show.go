package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/archive"
)

var showFlags struct {
	raw   bool
	width int
}

var showCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Show an archived contest",
	Long: `Print an archived contest as highlighted YAML followed by a rendered
summary. Without an argument the archived contests are listed, newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showFlags.raw, "raw", false, "Print the YAML only, without highlighting or summary")
	showCmd.Flags().IntVar(&showFlags.width, "width", 100, "Summary wrap width")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	arc := archive.New(cfg.ArchiveDir)

	if len(args) == 0 {
		paths, err := arc.List()
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Printf("No archived contests in %s\n", arc.Dir())
			return nil
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	}

	path := args[0]
	if !fileExists(path) {
		path = filepath.Join(arc.Dir(), args[0])
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	record, err := archive.Load(path)
	if err != nil {
		return err
	}

	if showFlags.raw {
		fmt.Print(string(source))
		return nil
	}

	fmt.Println(highlight(path, string(source)))
	fmt.Println(archive.Render(record.Markdown(), showFlags.width))
	return nil
}

// highlight applies terminal syntax highlighting, falling back to the plain
// source.
func highlight(fileName, source string) string {
	lexer := lexers.Match(fileName)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Get("terminal256")
	}
	if formatter == nil {
		return source
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return source
	}
	return buf.String()
}
