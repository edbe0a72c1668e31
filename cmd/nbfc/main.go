// Command nbfc is the compiler's CLI entrypoint: nbfc [--cache <db-file>]
// <input-file> <output-file>, the flag naming an optional on-disk cache of
// past compilations.
package main

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	_ "modernc.org/sqlite"

	"nbfc/internal/compiler"
	"nbfc/internal/lexer"
	"nbfc/internal/parser"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: nbfc [--cache <db-file>] <input-file> <output-file>")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "nbfc:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var cachePath string
	var positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--cache" {
			if i+1 >= len(args) {
				usage()
				return fmt.Errorf("--cache requires a path")
			}
			cachePath = args[i+1]
			i++
			continue
		}
		positional = append(positional, args[i])
	}
	if len(positional) != 2 {
		usage()
		return fmt.Errorf("expected exactly 2 positional arguments, got %d", len(positional))
	}
	inputPath, outputPath := positional[0], positional[1]

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	digest := sha256.Sum256(source)
	key := hex.EncodeToString(digest[:])

	var cache *compileCache
	if cachePath != "" {
		cache, err = openCompileCache(cachePath)
		if err != nil {
			return fmt.Errorf("opening compile cache: %w", err)
		}
		defer cache.Close()

		if cached, hit, err := cache.lookup(key); err != nil {
			return fmt.Errorf("querying compile cache: %w", err)
		} else if hit {
			logHit(inputPath, len(cached))
			return os.WriteFile(outputPath, []byte(cached), 0o644)
		}
	}

	l := lexer.New(string(source))
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "nbfc: parse error:", e)
		}
		return fmt.Errorf("%d parse error(s) in %s", len(errs), inputPath)
	}

	output, err := compiler.Compile(program)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", inputPath, err)
	}

	if cache != nil {
		if err := cache.store(key, inputPath, output); err != nil {
			return fmt.Errorf("writing compile cache: %w", err)
		}
	}

	logResult(inputPath, outputPath, len(output))
	return os.WriteFile(outputPath, []byte(output), 0o644)
}

// logResult prints a one-line summary, with a human-readable magnitude
// ("12 kB") when the report is headed to an interactive terminal and a
// plain "<n> bytes" count otherwise, so scripts piping nbfc's stderr get a
// simple number.
func logResult(inputPath, outputPath string, size int) {
	sizeStr := fmt.Sprintf("%d bytes", size)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		sizeStr = humanize.Bytes(uint64(size))
	}
	fmt.Fprintf(os.Stderr, "nbfc: compiled %s -> %s (%s)\n", inputPath, outputPath, sizeStr)
}

func logHit(inputPath string, size int) {
	sizeStr := fmt.Sprintf("%d bytes", size)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		sizeStr = humanize.Bytes(uint64(size))
	}
	fmt.Fprintf(os.Stderr, "nbfc: cache hit for %s (%s)\n", inputPath, sizeStr)
}

// compileCache is a content-addressed store of past compilations, keyed by
// the SHA-256 of the source text, so re-compiling an unchanged file is a
// single indexed lookup instead of a full lex/parse/lower/two-pass run.
type compileCache struct {
	db *sql.DB
}

func openCompileCache(path string) (*compileCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS compilations (
	source_hash TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	output      TEXT NOT NULL,
	compiled_at TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &compileCache{db: db}, nil
}

func (c *compileCache) Close() error { return c.db.Close() }

func (c *compileCache) lookup(hash string) (string, bool, error) {
	var output string
	err := c.db.QueryRow(`SELECT output FROM compilations WHERE source_hash = ?`, hash).Scan(&output)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return output, true, nil
}

func (c *compileCache) store(hash, sourcePath, output string) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO compilations (source_hash, source_path, run_id, output, compiled_at) VALUES (?, ?, ?, ?, ?)`,
		hash, sourcePath, uuid.New().String(), output, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
